package fragment

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"plansync/internal/locale"
	"plansync/internal/record"
)

const controlSelector = "input, select, textarea"

// TreeParser walks a parsed DOM with goquery.
type TreeParser struct{}

// NewTreeParser returns the tree strategy.
func NewTreeParser() *TreeParser { return &TreeParser{} }

// Name implements Parser.
func (p *TreeParser) Name() string { return StrategyTree }

func (p *TreeParser) document(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

// Snapshot implements Parser.
func (p *TreeParser) Snapshot(markup string) (snap Snapshot, err error) {
	defer guard(StrategyTree, "snapshot", &err)
	doc, err := p.document(markup)
	if err != nil {
		return Snapshot{ParseError: err.Error()}, err
	}
	if fields := treeFields(doc); len(fields) > 0 {
		snap.Fields = fields
	}
	snap.Tables = treeTables(doc)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		snap.Links = append(snap.Links, Link{Href: href, Text: locale.CleanText(a.Text())})
	})
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")
		snap.Images = append(snap.Images, Image{Src: src, Alt: locale.CleanText(alt)})
	})
	snap.BackgroundImages = backgroundImages(markup)
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		attrs := dataAttrs(s)
		if len(attrs) == 0 {
			return true
		}
		entry := DataElement{Tag: goquery.NodeName(s), Attrs: attrs}
		entry.ID, _ = s.Attr("id")
		if class, ok := s.Attr("class"); ok {
			entry.Class = strings.Join(strings.Fields(class), " ")
		}
		snap.DataAttrs = append(snap.DataAttrs, entry)
		return len(snap.DataAttrs) < MaxDataElements
	})
	return snap, nil
}

// Fields implements Parser.
func (p *TreeParser) Fields(markup string) (fields map[string]string, err error) {
	defer guard(StrategyTree, "fields", &err)
	doc, err := p.document(markup)
	if err != nil {
		return map[string]string{}, err
	}
	return treeFields(doc), nil
}

// treeFields resolves each label's control: the for= target, then a control
// inside the label, then one inside its parent, then the next control in
// document order.
func treeFields(doc *goquery.Document) map[string]string {
	fields := map[string]string{}
	ordered := doc.Find("label, " + controlSelector)
	ordered.Each(func(i int, label *goquery.Selection) {
		if goquery.NodeName(label) != "label" {
			return
		}
		name := locale.CleanText(label.Text())
		if name == "" {
			return
		}
		if _, seen := fields[name]; seen {
			return
		}

		var ctrl *goquery.Selection
		if forID, ok := label.Attr("for"); ok && forID != "" {
			target := doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
				id, _ := s.Attr("id")
				return id == forID
			}).First()
			if target.Length() > 0 {
				ctrl = target
			}
		}
		if ctrl == nil {
			if inner := label.Find(controlSelector).First(); inner.Length() > 0 {
				ctrl = inner
			}
		}
		if ctrl == nil {
			if sibling := label.Parent().Find(controlSelector).First(); sibling.Length() > 0 {
				ctrl = sibling
			}
		}
		if ctrl == nil {
			for j := i + 1; j < ordered.Length(); j++ {
				next := ordered.Eq(j)
				if goquery.NodeName(next) != "label" {
					ctrl = next
					break
				}
			}
		}
		if ctrl == nil {
			return
		}
		addField(fields, name, controlValue(ctrl))
	})
	return fields
}

// controlValue reads a select's chosen option, a checkbox state, textarea
// text, or an input value.
func controlValue(ctrl *goquery.Selection) string {
	switch goquery.NodeName(ctrl) {
	case "select":
		opt := ctrl.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = ctrl.Find("option").First()
		}
		if opt.Length() == 0 {
			return ""
		}
		if text := locale.CleanText(opt.Text()); text != "" {
			return text
		}
		val, _ := opt.Attr("value")
		return val
	case "textarea":
		return ctrl.Text()
	case "input":
		kind, _ := ctrl.Attr("type")
		switch strings.ToLower(kind) {
		case "checkbox", "radio":
			if _, checked := ctrl.Attr("checked"); checked {
				return "True"
			}
			return "False"
		}
		val, _ := ctrl.Attr("value")
		return val
	}
	return ""
}

func treeTables(doc *goquery.Document) []Table {
	var tables []Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		headers := cellTexts(table.Find("th"))
		var rows []Row
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			tds := tr.ChildrenFiltered("td")
			if tds.Length() == 0 {
				return
			}
			rows = append(rows, buildRow(headers, cellTexts(tds), dataAttrs(tr)))
		})
		if len(rows) == 0 {
			return
		}
		tables = append(tables, Table{Headers: headers, Rows: rows, Attrs: dataAttrs(table)})
	})
	return tables
}

func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, locale.CleanText(s.Text()))
	})
	return out
}

func dataAttrs(sel *goquery.Selection) map[string]string {
	if sel.Length() == 0 {
		return nil
	}
	return dataAttrsOf(sel.Nodes[0])
}

func dataAttrsOf(node *html.Node) map[string]string {
	var out map[string]string
	for _, a := range node.Attr {
		if !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[a.Key] = locale.CleanText(a.Val)
	}
	return out
}

// Parts implements Parser.
func (p *TreeParser) Parts(markup string) (parts []record.Part, meta map[string]string, err error) {
	defer guard(StrategyTree, "parts", &err)
	doc, err := p.document(markup)
	if err != nil {
		return nil, nil, err
	}

	var rich []record.Part
	table := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return partsTableClass.MatchString(class)
	}).First()
	if table.Length() > 0 {
		meta = dataAttrs(table)
		headers := cellTexts(table.Find("th"))
		cols := resolvePartColumns(headers)
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			class, _ := tr.Attr("class")
			if !partsRowClass.MatchString(class) {
				return
			}
			tds := tr.ChildrenFiltered("td")
			if tds.Length() == 0 {
				return
			}
			row := partRow{
				cells: cellTexts(tds),
				flags: map[string]bool{},
				attrs: dataAttrs(tr),
			}
			if row.attrs == nil {
				row.attrs = map[string]string{}
			}
			if cols.partNo >= 0 && cols.partNo < tds.Length() {
				row.partNoAttr, _ = tds.Eq(cols.partNo).Attr("data-prtnumber")
			}
			if cols.date >= 0 && cols.date < tds.Length() {
				cell := tds.Eq(cols.date)
				row.dateText = cell.Text()
				cell.Find("span[title]").Each(func(_ int, span *goquery.Selection) {
					if title, _ := span.Attr("title"); title != "" {
						row.dateTitles = append(row.dateTitles, title)
					}
				})
			}
			tr.Find("input").Each(func(_ int, in *goquery.Selection) {
				class, _ := in.Attr("class")
				if !partStatusClass.MatchString(class) {
					return
				}
				action, _ := in.Attr("data-action")
				if action = strings.TrimSpace(action); action == "" {
					return
				}
				_, checked := in.Attr("checked")
				row.flags[action] = checked
			})
			tr.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
				class, _ := td.Attr("class")
				if !partMainStatus.MatchString(class) {
					return true
				}
				if title, ok := td.Find("i[title]").First().Attr("title"); ok {
					row.icon = locale.CleanText(title)
				}
				return false
			})
			rich = append(rich, buildRichPart(cols, headers, row))
		})
	}

	parts = finishParts(rich, func() []Table { return treeTables(doc) }, markup)
	return parts, meta, nil
}

// PartsStatus implements Parser.
func (p *TreeParser) PartsStatus(markup string) (status string) {
	defer func() {
		if recover() != nil {
			status = ""
		}
	}()
	if s := statusFromButton(markup); s != "" {
		return s
	}
	doc, err := p.document(markup)
	if err != nil {
		return ""
	}
	sel := doc.Find("select").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		return strings.Contains(strings.ToLower(name), "status")
	}).First()
	if opt := sel.Find("option[selected]").First(); opt.Length() > 0 {
		return locale.CleanText(opt.Text())
	}
	return ""
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"plansync/internal/record"
	"plansync/internal/services"
	"plansync/internal/store"
)

type showOptions struct {
	parts     bool
	sections  bool
	section   string
	allFields bool
	json      bool
}

type partView struct {
	PartNo       string   `json:"part_no"`
	Description  string   `json:"description"`
	Qty          *float64 `json:"qty"`
	PriceEach    *float64 `json:"price_each"`
	PriceTotal   *float64 `json:"price_total"`
	Status       string   `json:"status"`
	OrderDate    string   `json:"order_date"`
	DeliveryDate string   `json:"delivery_date"`
	ETADate      string   `json:"eta_date"`
	IsToOrder    bool     `json:"is_to_order"`
	IsOrdered    bool     `json:"is_ordered"`
	IsDelivered  bool     `json:"is_delivered"`
	IsBackorder  bool     `json:"is_backorder"`
	IsMissing    bool     `json:"is_missing"`
}

type sectionView struct {
	Name        string          `json:"section"`
	ContentType string          `json:"content_type"`
	Size        int             `json:"raw_size"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type showView struct {
	Order    orderView     `json:"order"`
	Parts    []partView    `json:"parts,omitempty"`
	Sections []sectionView `json:"sections,omitempty"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var opts showOptions

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			return ctx.withStore(func(st *store.Store) error {
				return runShow(cmd, st, id, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.parts, "parts", false, "Print parts rows (synced with --with-parts)")
	cmd.Flags().BoolVar(&opts.sections, "sections", false, "List stored section snapshots (synced with --full)")
	cmd.Flags().StringVar(&opts.section, "section", "", "Show parsed data for one section name")
	cmd.Flags().BoolVar(&opts.allFields, "all-fields", false, "Print every parsed form field")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	return cmd
}

func runShow(cmd *cobra.Command, st *store.Store, id int64, opts showOptions) error {
	ctx := cmd.Context()
	order, err := st.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("no order with id=%d: %w", id, services.ErrNotFound)
	}

	var parts []record.Part
	if opts.parts {
		if parts, err = st.Parts(ctx, id); err != nil {
			return err
		}
	}
	var sections []store.SectionInfo
	if opts.sections && opts.section == "" {
		if sections, err = st.Sections(ctx, id); err != nil {
			return err
		}
	}
	var single *record.Section
	if opts.section != "" {
		if single, err = st.Section(ctx, id, opts.section); err != nil {
			return err
		}
		if single == nil {
			return fmt.Errorf("no section %q for id=%d: %w", opts.section, id, services.ErrNotFound)
		}
	}

	if opts.json {
		view := showView{Order: newOrderView(*order, opts.allFields)}
		for _, p := range parts {
			view.Parts = append(view.Parts, newPartView(p))
		}
		for _, s := range sections {
			view.Sections = append(view.Sections, sectionView{Name: s.Name, ContentType: s.ContentType, Size: s.Size})
		}
		if single != nil {
			view.Sections = append(view.Sections, sectionView{
				Name:        single.Name,
				ContentType: single.ContentType,
				Size:        len(single.Raw),
				Data:        validJSON(single.Parsed),
			})
		}
		return writeJSON(cmd, view)
	}

	w := cmd.OutOrStdout()
	printOrder(w, *order)
	if opts.parts {
		fmt.Fprintln(w, renderTable(fmt.Sprintf("Parts (%d)", len(parts)), partColumns, partRows(parts)))
	}
	if opts.allFields {
		fmt.Fprintln(w, renderTable("All form fields (by label)", []column{left("Label"), capped("Value", 80)}, fieldRows(order.Fields)))
	}
	if single != nil {
		fmt.Fprintf(w, "Section %s (%s)\n", single.Name, single.ContentType)
		fmt.Fprintln(w, prettyJSON(single.Parsed))
	} else if opts.sections {
		rows := make([][]string, 0, len(sections))
		for _, s := range sections {
			rows = append(rows, []string{s.Name, s.ContentType, strconv.Itoa(s.Size)})
		}
		fmt.Fprintln(w, renderTable(fmt.Sprintf("Sections (%d)", len(sections)), []column{left("Section"), left("Content-Type"), right("Raw size")}, rows))
	}
	return nil
}

func printOrder(w io.Writer, o record.Order) {
	station := ""
	if o.StationID != nil {
		station = strconv.FormatInt(*o.StationID, 10)
	}
	fmt.Fprintf(w, "%s  ID=%d\n", o.ShortName, o.ID)
	fmt.Fprintf(w, "%s | station=%s@%s | status=%s | missing_parts=%s\n", o.Plate, station, o.StationState, o.ProjectStatus, boolDigit(o.MissingParts))
	rows := [][]string{
		{"Person", o.Person},
		{"Phone", o.Phone},
		{"Email", o.Email},
		{"Shop date", o.ShopDate},
		{"Repair date", o.RepairDate},
		{"Finish date", o.FinishDate},
		{"Planned delivery", o.PlannedDate},
		{"Damage", o.Damage},
		{"Parts status", o.PartsStatus},
		{"Est hours Karo", floatText(o.EstKaro)},
		{"Est hours Lack", floatText(o.EstLack)},
		{"Est hours Mech", floatText(o.EstMech)},
	}
	keys := make([]string, 0, len(o.VehicleInfo))
	for k := range o.VehicleInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []string{"Vehicle " + k, o.VehicleInfo[k]})
	}
	fmt.Fprintln(w, renderTable("Order", fieldValueColumns, rows))
}

var partColumns = []column{
	left("Part No"),
	capped("Description", 60),
	right("Qty"),
	capped("Status", 30),
	right("To order"),
	right("Ordered"),
	right("Delivered"),
	right("Backorder"),
	left("Delivery"),
	left("ETA"),
	right("Missing"),
}

func partRows(parts []record.Part) [][]string {
	rows := make([][]string, 0, len(parts))
	for _, p := range parts {
		rows = append(rows, []string{
			p.PartNo,
			p.Description,
			floatText(p.Qty),
			p.Status,
			boolDigit(p.IsToOrder),
			boolDigit(p.IsOrdered),
			boolDigit(p.IsDelivered),
			boolDigit(p.IsBackorder),
			p.DeliveryDate,
			p.ETADate,
			boolDigit(p.IsMissing),
		})
	}
	return rows
}

func newPartView(p record.Part) partView {
	return partView{
		PartNo:       p.PartNo,
		Description:  p.Description,
		Qty:          p.Qty,
		PriceEach:    p.PriceEach,
		PriceTotal:   p.PriceTotal,
		Status:       p.Status,
		OrderDate:    p.OrderDate,
		DeliveryDate: p.DeliveryDate,
		ETADate:      p.ETADate,
		IsToOrder:    p.IsToOrder,
		IsOrdered:    p.IsOrdered,
		IsDelivered:  p.IsDelivered,
		IsBackorder:  p.IsBackorder,
		IsMissing:    p.IsMissing,
	}
}

func fieldRows(fields map[string]string) [][]string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fields[k]})
	}
	return rows
}

func validJSON(data []byte) json.RawMessage {
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return json.RawMessage(quoted)
}

func prettyJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

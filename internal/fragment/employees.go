package fragment

import (
	"regexp"
	"sort"
	"strconv"

	"plansync/internal/record"
)

var (
	// An employee option is a checkbox followed by its name in <small>, closed
	// by the label and two wrapping divs.
	employeeBlock = regexp.MustCompile(`(?is)rspSv_todo_list_employee_option[^>]*\bvalue="(\d+)"[^>]*>.*?</label>\s*</div>\s*</div>`)
	employeeLoose = regexp.MustCompile(`(?is)rspSv_todo_list_employee_option[^>]*\bvalue="(\d+)"[^>]*>.*?<small>\s*(.*?)\s*</small>`)
	smallPattern  = regexp.MustCompile(`(?is)<small>\s*(.*?)\s*</small>`)
	endpointInJS  = regexp.MustCompile(`['"](/do\?m=[^'"\\]+)`)
)

// Employees extracts the employee directory from a shop view fragment.
// Entries keep first-seen order and are unique by ID.
func Employees(markup string) []record.Employee {
	var out []record.Employee
	seen := map[int64]struct{}{}
	add := func(rawID, name string) {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return
		}
		name = stripTags(name)
		if name == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, record.Employee{ID: id, Name: name})
	}

	for _, m := range employeeBlock.FindAllStringSubmatch(markup, -1) {
		if sm := smallPattern.FindStringSubmatch(m[0]); sm != nil {
			add(m[1], sm[1])
		}
	}
	if len(out) == 0 {
		for _, m := range employeeLoose.FindAllStringSubmatch(markup, -1) {
			add(m[1], m[2])
		}
	}
	return out
}

// Endpoints lists the distinct /do?m=... endpoints referenced in a script
// blob, sorted.
func Endpoints(js string) []string {
	set := map[string]struct{}{}
	for _, m := range endpointInJS.FindAllStringSubmatch(js, -1) {
		set[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for ep := range set {
		out = append(out, ep)
	}
	sort.Strings(out)
	return out
}

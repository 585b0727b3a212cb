package syncer

import (
	"context"
	"fmt"
	"time"

	"plansync/internal/envelope"
	"plansync/internal/fragment"
	"plansync/internal/mapper"
	"plansync/internal/record"
	"plansync/internal/remote"
	"plansync/internal/services"
)

// process runs the fetch, unwrap, parse, and map steps for one project. It
// never touches the store.
func (s *Syncer) process(ctx context.Context, client *remote.Client, project record.Project, opts Options) (out Outcome) {
	start := time.Now()
	out = Outcome{Project: project, State: StatePending}
	defer func() {
		out.Elapsed = time.Since(start)
	}()
	fail := func(err error) Outcome {
		out.State = StateFailed
		out.Err = err
		return out
	}

	if !project.HasID() {
		return fail(services.Wrap(services.ErrShape, "sync", "project", fmt.Sprintf("project %q has no ID", project.ShortName), nil))
	}
	id := project.ID
	ctx = services.WithOrderID(ctx, id)

	out.State = StateFetching
	shopView, err := client.ShopViewSingle(services.WithStage(ctx, "shop_view_single"), id)
	if err != nil {
		return fail(err)
	}
	forms, err := client.VisualFormsPlain(services.WithStage(ctx, "visual_forms_plain"), id)
	if err != nil {
		return fail(err)
	}
	var (
		parts        remote.PartsResult
		partsFetched bool
	)
	if opts.WithParts || opts.Full {
		parts, err = client.PartsDeep(services.WithStage(ctx, "parts"), s.parser, id)
		if err != nil {
			return fail(err)
		}
		partsFetched = true
		out.Warnings = append(out.Warnings, parts.Warnings...)
	}

	out.State = StateParsing
	employees := fragment.Employees(shopView.CenterContent())
	fields, err := s.parser.Fields(forms.CenterContent())
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("visual_forms_plain: %v", err))
	}
	if fields == nil {
		fields = map[string]string{}
	}
	order := mapper.BuildOrder(project, fields, mapper.PartsInfo{
		Status: parts.Status,
		List:   parts.Parts,
		Meta:   parts.Meta,
	}, s.now())

	out.Record = record.Record{
		Order:        order,
		Parts:        parts.Parts,
		PartsFetched: partsFetched,
		Employees:    employees,
	}

	if opts.Full {
		prefetched := map[string]remote.View{
			"shop_view_single":   shopView,
			"visual_forms_plain": forms,
		}
		if partsFetched {
			prefetched["parts"] = parts.Tab
		}
		shopDate := order.ShopDate
		if shopDate == "" {
			shopDate = order.RepairDate
		}
		out.State = StateFetching
		raws, warnings := client.FetchSections(services.WithStage(ctx, "sections"), id, shopDate, prefetched, opts.IncludeBinary)
		out.Warnings = append(out.Warnings, warnings...)

		out.State = StateParsing
		fetchedAt := s.now()
		sections := make([]record.Section, 0, len(raws))
		for _, raw := range raws {
			env := envelope.Unwrap(s.parser, raw.Body, raw.ContentType)
			for _, w := range env.Warnings {
				out.Warnings = append(out.Warnings, raw.Name+": "+w)
			}
			sections = append(sections, record.Section{
				Name:        raw.Name,
				ContentType: raw.ContentType,
				Raw:         raw.Body,
				Parsed:      env.Data(),
				FetchedAt:   fetchedAt,
			})
		}
		out.Record.Sections = sections
		out.Record.SectionsFetched = true
	}
	return out
}

package attendance

import (
	"context"
	"math"
	"sort"
)

// Analytics summarises attendance for the dashboard charts.
type Analytics struct {
	Pie  StatusCounts `json:"pie"`
	Line []DayCount   `json:"line"`
	Bar  []StudentPct `json:"bar"`
}

// StatusCounts counts records per review status. Approved records count as present.
type StatusCounts struct {
	Present  int `json:"present"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type StudentPct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Pct  int    `json:"pct"`
}

// Analytics computes chart data over every stored record.
func (s *Service) Analytics(ctx context.Context) (Analytics, error) {
	records, err := s.Records(ctx, RecordFilter{})
	if err != nil {
		return Analytics{}, err
	}
	return summarize(records), nil
}

func summarize(records []Record) Analytics {
	var a Analytics
	byDate := map[string]int{}
	type tally struct {
		name      string
		total, ok int
	}
	byStudent := map[string]*tally{}
	var order []string

	for _, r := range records {
		switch r.Status {
		case StatusApproved:
			a.Pie.Present++
		case StatusPending:
			a.Pie.Pending++
		case StatusRejected:
			a.Pie.Rejected++
		}
		byDate[r.Date]++

		t, ok := byStudent[r.StudentID]
		if !ok {
			t = &tally{name: r.StudentName}
			byStudent[r.StudentID] = t
			order = append(order, r.StudentID)
		}
		t.total++
		if r.Status == StatusApproved {
			t.ok++
		}
	}

	a.Line = make([]DayCount, 0, len(byDate))
	for d, n := range byDate {
		a.Line = append(a.Line, DayCount{Date: d, Count: n})
	}
	sort.Slice(a.Line, func(i, j int) bool { return a.Line[i].Date < a.Line[j].Date })

	a.Bar = make([]StudentPct, 0, len(order))
	for _, id := range order {
		t := byStudent[id]
		pct := int(math.Round(float64(t.ok) / float64(t.total) * 100))
		a.Bar = append(a.Bar, StudentPct{ID: id, Name: t.name, Pct: pct})
	}
	return a
}

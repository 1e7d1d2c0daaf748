package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID     int
	Name   string
	Status string
	Amount float64
	When   *time.Time
	Tags   []string
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ptr[V any](v V) *V { return &v }

var rowFields = Fields[row]{
	"id":     func(r row) any { return r.ID },
	"name":   func(r row) any { return r.Name },
	"amount": func(r row) any { return r.Amount },
	"when":   func(r row) any { return r.When },
}

func sampleRows() []row {
	return []row{
		{ID: 1, Name: "Gauze", Status: "draft", Amount: 100, When: ts("2024-03-01T10:00:00Z"), Tags: []string{"sterile"}},
		{ID: 2, Name: "alcohol", Status: "pending", Amount: 200, When: ts("2024-03-05T10:00:00Z")},
		{ID: 3, Name: "Bandage", Status: "completed", Amount: 300, When: nil, Tags: []string{"Urgent", "sterile"}},
		{ID: 4, Name: "gloves", Status: "completed", Amount: 50, When: ts("2024-02-20T10:00:00Z")},
	}
}

func ids(rows []row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestFilterEmptyMatchesEverything(t *testing.T) {
	var f Filter[row]
	f.Where(
		Search[row]("  ", Text(func(r row) string { return r.Name })),
		Equal("all", func(r row) string { return r.Status }),
		Equal("", func(r row) string { return r.Status }),
		TimeRange[row](nil, nil, func(r row) *time.Time { return r.When }),
		NumberRange[row](nil, nil, func(r row) float64 { return r.Amount }),
		AnyOf[row]([]string{}, func(r row) []string { return r.Tags }),
		When[row](false, func(row) bool { return false }),
	)

	assert.Equal(t, 0, f.Len())
	assert.Len(t, f.Apply(sampleRows()), 4)

	var nilFilter *Filter[row]
	assert.Len(t, nilFilter.Apply(sampleRows()), 4)
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	var f Filter[row]
	f.Where(Search("URG",
		Text(func(r row) string { return r.Name }),
		func(r row) []string { return r.Tags },
	))

	assert.Equal(t, []int{3}, ids(f.Apply(sampleRows())))
}

func TestTimeRangeInclusiveAndMissingValues(t *testing.T) {
	get := func(r row) *time.Time { return r.When }

	var f Filter[row]
	f.Where(TimeRange[row](ts("2024-03-01T10:00:00Z"), ts("2024-03-05T10:00:00Z"), get))
	assert.Equal(t, []int{1, 2}, ids(f.Apply(sampleRows())))

	var open Filter[row]
	open.Where(TimeRange[row](nil, ts("2024-03-01T00:00:00Z"), get))
	assert.Equal(t, []int{4}, ids(open.Apply(sampleRows())), "row without a date must fail a bounded range")

	var missing Filter[row]
	missing.Where(Missing[row](ptr(true), get))
	assert.Equal(t, []int{3}, ids(missing.Apply(sampleRows())))
}

func TestNumberRangeAndFlag(t *testing.T) {
	var f Filter[row]
	f.Where(
		NumberRange[row](ptr(100.0), ptr(300.0), func(r row) float64 { return r.Amount }),
		Flag[row](ptr(true), func(r row) bool { return r.Status == "completed" }),
	)
	assert.Equal(t, []int{3}, ids(f.Apply(sampleRows())))
}

func TestFilterMonotonicity(t *testing.T) {
	rows := sampleRows()
	preds := []Predicate[row]{
		Search[row]("a", Text(func(r row) string { return r.Name })),
		NumberRange[row](ptr(60.0), nil, func(r row) float64 { return r.Amount }),
		Equal("completed", func(r row) string { return r.Status }),
		AnyOf[row]([]string{"sterile"}, func(r row) []string { return r.Tags }),
	}

	var f Filter[row]
	prev := len(f.Apply(rows))
	for _, p := range preds {
		f.Where(p)
		n := len(f.Apply(rows))
		assert.LessOrEqual(t, n, prev)
		prev = n
	}
}

func TestSortTypeAware(t *testing.T) {
	rows := sampleRows()

	SortStable(rows, Sort{Field: "name", Direction: Asc}, rowFields)
	assert.Equal(t, []int{2, 3, 1, 4}, ids(rows), "names compare case-insensitively")

	SortStable(rows, Sort{Field: "amount", Direction: Desc}, rowFields)
	assert.Equal(t, []int{3, 2, 1, 4}, ids(rows))

	SortStable(rows, Sort{Field: "when", Direction: Asc}, rowFields)
	assert.Equal(t, []int{3, 4, 1, 2}, ids(rows), "missing dates sort lowest")
}

func TestSortUnknownFieldKeepsOrder(t *testing.T) {
	rows := sampleRows()
	SortStable(rows, Sort{Field: "nope"}, rowFields)
	assert.Equal(t, []int{1, 2, 3, 4}, ids(rows))
}

func TestSortStableAndIdempotent(t *testing.T) {
	rows := []row{
		{ID: 1, Status: "b"}, {ID: 2, Status: "a"}, {ID: 3, Status: "b"}, {ID: 4, Status: "a"},
	}
	fields := Fields[row]{"status": func(r row) any { return r.Status }}

	SortStable(rows, Sort{Field: "status"}, fields)
	assert.Equal(t, []int{2, 4, 1, 3}, ids(rows))

	again := append([]row(nil), rows...)
	SortStable(again, Sort{Field: "status"}, fields)
	assert.Equal(t, ids(rows), ids(again))
}

func TestCompareNumericKinds(t *testing.T) {
	assert.Equal(t, -1, Compare(int64(2), 10.5))
	assert.Equal(t, 0, Compare(nil, (*time.Time)(nil)))
	assert.Equal(t, -1, Compare(nil, "a"))
	assert.Equal(t, 1, Compare(true, false))
	assert.Equal(t, 0, Compare("ABC", "abc"))
}

type shade string

func TestCompareNamedKinds(t *testing.T) {
	assert.Equal(t, -1, Compare(shade("Amber"), shade("blue")))
	assert.Equal(t, 1, Compare(shade("red"), shade("Blue")))
	assert.Equal(t, 0, Compare(shade("RED"), shade("red")))
	assert.Equal(t, -1, Compare(uint8(3), 4))
	assert.Equal(t, 0, Compare((*int)(nil), nil))

	n := 7
	assert.Equal(t, 1, Compare(&n, 2))
}

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	p := Paginate(items, 3, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 25, p.Total)

	clamped := Paginate(items, 9, 10)
	assert.Equal(t, 3, clamped.Page)

	empty := Paginate([]int{}, 4, 10)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Equal(t, 1, empty.Page)
	assert.Empty(t, empty.Items)
}

func TestPaginationCoverage(t *testing.T) {
	for _, size := range []int{1, 3, 7, 10, 30} {
		items := make([]int, 23)
		for i := range items {
			items[i] = i
		}
		var all []int
		pages := TotalPages(len(items), size)
		for p := 1; p <= pages; p++ {
			all = append(all, Paginate(items, p, size).Items...)
		}
		assert.Equal(t, items, all, fmt.Sprintf("size %d", size))
	}
}

func TestViewSettersResetPage(t *testing.T) {
	v := NewView("x", Sort{Field: "name"}).WithPage(4)
	require.Equal(t, 4, v.Page)

	assert.Equal(t, 1, v.WithFilters("y").Page)
	assert.Equal(t, 1, v.WithPageSize(50).Page)
	assert.Equal(t, 1, v.WithSort(Sort{Field: "amount"}).Page)
	assert.Equal(t, 4, v.Page, "setters do not mutate the receiver")
}

func TestRun(t *testing.T) {
	var f Filter[row]
	f.Where(Equal("completed", func(r row) string { return r.Status }))
	v := View[string]{Sort: Sort{Field: "amount", Direction: Asc}, Page: 1, PageSize: 1}

	page := Run(sampleRows(), v, &f, rowFields)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, []int{4}, ids(page.Items))
}

func TestAggregates(t *testing.T) {
	rows := sampleRows()

	counts := CountBy(rows, func(r row) string { return r.Status })
	assert.Equal(t, 2, counts["completed"])

	sum := SumBy(rows, nil, func(r row) float64 { return r.Amount })
	assert.Equal(t, 650.0, sum)
	assert.Equal(t, 162.5, Average(sum, len(rows)))
	assert.Equal(t, 0.0, Average(0, 0))

	assert.Equal(t, 0.0, Percent(0, 0))
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 50.0, Percent(1, 2))
	assert.Equal(t, 100.0, Percent(5, 2))
}

func TestTopN(t *testing.T) {
	rows := []row{
		{Name: "a", Amount: 10}, {Name: "b", Amount: 50}, {Name: "a", Amount: 45},
		{Name: "c", Amount: 5}, {Name: "", Amount: 1000},
	}
	top := TopN(rows, 2, func(r row) (string, string) { return r.Name, r.Name }, func(r row) float64 { return r.Amount })

	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Key)
	assert.Equal(t, 2, top[0].Count)
	assert.Equal(t, 55.0, top[0].Value)
	assert.Equal(t, "b", top[1].Key)

	assert.Empty(t, TopN([]row{}, 5, func(r row) (string, string) { return r.Name, "" }, func(r row) float64 { return 0 }))
}

func TestTimeWindows(t *testing.T) {
	now := *ts("2024-03-10T15:00:00Z")

	assert.True(t, IsToday(ts("2024-03-10T01:00:00Z"), now))
	assert.False(t, IsToday(ts("2024-03-09T23:59:00Z"), now))
	assert.False(t, IsToday(nil, now))

	assert.True(t, WithinLastWeek(ts("2024-03-03T15:00:00Z"), now))
	assert.False(t, WithinLastWeek(ts("2024-03-03T14:59:00Z"), now))

	assert.True(t, WithinLastMonth(ts("2024-02-10T15:00:00Z"), now))
	assert.False(t, WithinLastMonth(ts("2024-02-09T15:00:00Z"), now))
	assert.False(t, WithinLastMonth(ts("2024-03-11T00:00:00Z"), now), "future instants are outside the window")

	assert.Equal(t, now, Fixed(now).Now())
}

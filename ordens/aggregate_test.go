package ordens

import (
	"reflect"
	"testing"
)

func exampleDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Normalize(testTable(
		testRow("1", "Acme", "2025-01-05"),
		testRow("2", "Acme", "2025-01-20"),
		testRow("3", "Beta", "2025-02-02"),
		testRow("4", "Gama", "N/A"),
	))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return ds
}

func TestAggregateExample(t *testing.T) {
	ds := exampleDataset(t)
	ft := Aggregate(ds, "2025-01", Client)
	if want := []Count{{Value: "Acme", Count: 2}}; !reflect.DeepEqual(ft.Entries, want) {
		t.Fatalf("entries = %v, want %v", ft.Entries, want)
	}
	if ft.Month != "2025-01" || ft.Field != Client {
		t.Fatalf("table metadata = %q / %v", ft.Month, ft.Field)
	}
}

func TestAggregateEmptyMonth(t *testing.T) {
	ds := exampleDataset(t)
	ft := Aggregate(ds, "1999-12", Client)
	if len(ft.Entries) != 0 || ft.Total() != 0 {
		t.Fatalf("expected empty table, got %v", ft.Entries)
	}
}

func TestAggregateOrderAndMissing(t *testing.T) {
	rows := [][]string{
		testRow("1", "Beta", "2025-03-01"),
		testRow("2", "", "2025-03-02"),
		testRow("3", "Acme", "2025-03-03"),
		testRow("4", "Acme", "2025-03-04"),
		testRow("5", "", "2025-03-05"),
		testRow("6", "Gama", "2025-03-06"),
	}
	ds, err := Normalize(testTable(rows...))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	ft := Aggregate(ds, "2025-03", Client)
	want := []Count{
		{Value: "", Count: 2},
		{Value: "Acme", Count: 2},
		{Value: "Beta", Count: 1},
		{Value: "Gama", Count: 1},
	}
	if !reflect.DeepEqual(ft.Entries, want) {
		t.Fatalf("entries = %v, want %v", ft.Entries, want)
	}
}

func TestAggregateTotalMatchesMonth(t *testing.T) {
	var rows [][]string
	clients := []string{"Acme", "Beta", "Gama", ""}
	days := []string{"2025-01-03", "2025-01-15", "2025-02-01", "2025-02-27", "2025-03-10"}
	for i := 0; i < 40; i++ {
		r := testRow("p", clients[i%len(clients)], days[i%len(days)])
		r[Neighborhood] = clients[(i+1)%len(clients)]
		rows = append(rows, r)
	}
	ds, err := Normalize(testTable(rows...))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	fields := []Field{Client, Type, Method, Status, CreatedAt, User, Neighborhood, AccessPoint, ClosedBy, CreatedDay}
	for _, m := range ds.Months {
		n := ds.Filter(m).Len()
		for _, f := range fields {
			if got := Aggregate(ds, m, f).Total(); got != n {
				t.Errorf("month %s field %s: total %d, want %d", m, f, got, n)
			}
		}
	}
}

func TestFilterDoesNotMutate(t *testing.T) {
	ds := exampleDataset(t)
	before := ds.Len()
	view := ds.Filter("2025-02")
	if view.Len() != 1 || view.Records[0].Values[Client] != "Beta" {
		t.Fatalf("view = %+v", view.Records)
	}
	view.Records[0].Values[Client] = "mudado"
	if ds.Len() != before || ds.Records[2].Values[Client] != "Beta" {
		t.Fatalf("original dataset changed")
	}
}

func TestFrequencyTableTop(t *testing.T) {
	ft := FrequencyTable{Entries: []Count{{"a", 5}, {"b", 3}, {"c", 2}, {"d", 1}}}
	top := ft.Top(2)
	want := []Count{{"a", 5}, {"b", 3}, {OthersLabel, 3}}
	if !reflect.DeepEqual(top.Entries, want) {
		t.Fatalf("Top(2) = %v, want %v", top.Entries, want)
	}
	if top.Total() != ft.Total() {
		t.Fatalf("total changed: %d vs %d", top.Total(), ft.Total())
	}
	if got := ft.Top(10); !reflect.DeepEqual(got.Entries, ft.Entries) {
		t.Fatalf("Top larger than table must not change it")
	}
	if !reflect.DeepEqual(ft.Labels(), []string{"a", "b", "c", "d"}) || !reflect.DeepEqual(ft.Counts(), []int{5, 3, 2, 1}) {
		t.Fatalf("Labels/Counts = %v %v", ft.Labels(), ft.Counts())
	}
}

func TestDerivedFields(t *testing.T) {
	ds := exampleDataset(t)
	r := ds.Records[0]
	if r.Get(Month) != "2025-01" || r.Get(CreatedDay) != "2025-01-05" {
		t.Fatalf("derived = %q %q", r.Get(Month), r.Get(CreatedDay))
	}
	f, err := ParseField("Finalizado Por")
	if err != nil || f != ClosedBy {
		t.Fatalf("ParseField = %v, %v", f, err)
	}
	if f, err := ParseField("access_point"); err != nil || f != AccessPoint {
		t.Fatalf("ParseField(access_point) = %v, %v", f, err)
	}
	if _, err := ParseField("nope"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

package selector

import (
	"errors"
	"testing"

	"streamdock/pkg/stream"
)

func result() *stream.Result {
	return &stream.Result{
		Order: []string{"b", "a", "c"},
		Groups: map[string]*stream.Group{
			"b": {ID: "b", Name: "Beta", Entries: []stream.Entry{
				{URL: "b1", AddonID: "b"},
			}},
			"a": {ID: "a", Name: "Alpha", Entries: []stream.Entry{
				{URL: "a1", AddonID: "a"},
				{URL: "a2", AddonID: "a"},
			}},
			"c": {ID: "c", Name: "Gamma", Entries: []stream.Entry{
				{URL: "c1", AddonID: "c"},
			}},
		},
		Errors: map[string]error{},
	}
}

func TestOrderInstalledFirst(t *testing.T) {
	got := Order([]string{"b", "a", "c"}, []string{"a", "c"})
	want := []string{"a", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOrderAbsentKeepEncounterOrder(t *testing.T) {
	got := Order([]string{"x", "b", "y", "a"}, []string{"a", "b"})
	want := []string{"a", "b", "x", "y"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOrderInstalledNotInResult(t *testing.T) {
	got := Order([]string{"a"}, []string{"z", "a"})
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("installed ids missing from the result must not appear, got %v", got)
	}
}

func TestSelectAll(t *testing.T) {
	res := result()
	groups := Select(res, All, []string{"a", "c"}, nil)

	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	wantOrder := []string{"a", "c", "b"}
	total := 0
	for i, g := range groups {
		if g.ID != wantOrder[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantOrder[i], g.ID)
		}
		total += len(g.Entries)
	}
	if total != res.TotalStreams() {
		t.Errorf("all-selection must equal the union: %d != %d", total, res.TotalStreams())
	}
}

func TestSelectConcreteToken(t *testing.T) {
	res := result()
	groups := Select(res, "a", []string{"a", "c"}, nil)

	if len(groups) != 1 || groups[0].ID != "a" {
		t.Fatalf("expected only provider a, got %+v", groups)
	}
	for _, e := range groups[0].Entries {
		if e.AddonID != "a" {
			t.Errorf("foreign entry leaked into selection: %+v", e)
		}
	}
}

func TestSelectUnknownToken(t *testing.T) {
	if groups := Select(result(), "nope", []string{"a"}, nil); len(groups) != 0 {
		t.Errorf("unknown token must select nothing, got %+v", groups)
	}
}

func TestSelectFailedProvider(t *testing.T) {
	res := result()
	boom := errors.New("unreachable")
	delete(res.Groups, "c")
	res.Errors["c"] = boom

	groups := Select(res, All, []string{"a", "c"}, map[string]string{"c": "Gamma Installed"})
	var failed *ProviderStreams
	for i := range groups {
		if groups[i].ID == "c" {
			failed = &groups[i]
		}
	}
	if failed == nil {
		t.Fatal("failed provider must stay visible")
	}
	if !errors.Is(failed.Err, boom) {
		t.Errorf("expected recorded error, got %v", failed.Err)
	}
	if len(failed.Entries) != 0 {
		t.Error("failed provider carries no entries")
	}
	if failed.Name != "Gamma Installed" {
		t.Errorf("expected installed name, got %s", failed.Name)
	}
}

func TestDisplayNamePrecedence(t *testing.T) {
	cases := []struct {
		installed, provider, id, want string
	}{
		{"Installed", "Provider", "id", "Installed"},
		{"", "Provider", "id", "Provider"},
		{"", "", "id", "id"},
	}
	for _, c := range cases {
		if got := DisplayName(c.installed, c.provider, c.id); got != c.want {
			t.Errorf("DisplayName(%q, %q, %q) = %q, want %q", c.installed, c.provider, c.id, got, c.want)
		}
	}
}

func TestSelectUsesInstalledNameOverProviderName(t *testing.T) {
	groups := Select(result(), "b", nil, map[string]string{"b": "My Beta"})
	if len(groups) != 1 || groups[0].Name != "My Beta" {
		t.Fatalf("expected installed name to win, got %+v", groups)
	}

	groups = Select(result(), "b", nil, nil)
	if groups[0].Name != "Beta" {
		t.Errorf("expected provider-returned name as fallback, got %s", groups[0].Name)
	}
}

func TestOptions(t *testing.T) {
	res := result()
	delete(res.Groups, "c")
	res.Errors["c"] = errors.New("down")

	opts := Options(res, []string{"a", "c"}, nil)
	if opts[0].Token != All {
		t.Fatalf("first option must be the all token, got %+v", opts[0])
	}
	if opts[0].Count != 3 {
		t.Errorf("all count should be the union size, got %d", opts[0].Count)
	}

	wantOrder := []string{"a", "c", "b"}
	for i, w := range wantOrder {
		opt := opts[i+1]
		if opt.Token != w {
			t.Errorf("option %d: expected token %s, got %s", i+1, w, opt.Token)
		}
		if w == "c" && !opt.Failed {
			t.Error("failed provider option must be flagged")
		}
	}
}

func TestSelectNilResult(t *testing.T) {
	if got := Select(nil, All, nil, nil); got != nil {
		t.Errorf("nil result selects nothing, got %+v", got)
	}
	opts := Options(nil, nil, nil)
	if len(opts) != 1 || opts[0].Token != All {
		t.Errorf("nil result still offers the all option, got %+v", opts)
	}
}

package stations

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	l := Defaults()
	if len(l) == 0 {
		t.Fatal("no default categories")
	}
	if l[0].Name != "EX-YU" {
		t.Fatalf("first category = %q, want EX-YU", l[0].Name)
	}
	for _, c := range l {
		if len(c.Stations) == 0 {
			t.Errorf("category %q is empty", c.Name)
		}
		for _, s := range c.Stations {
			if s.Name == "" || !strings.HasPrefix(s.URL, "http") {
				t.Errorf("bad station %+v in %q", s, c.Name)
			}
		}
	}
}

func TestListJSONKeepsOrder(t *testing.T) {
	in := `{"Zeta":[["Z1","http://z/1"]],"Alpha":[{"name":"A1","url":"http://a/1"}],"Mid & More":[]}`
	var l List
	if err := json.Unmarshal([]byte(in), &l); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(l) != 3 || l[0].Name != "Zeta" || l[1].Name != "Alpha" || l[2].Name != "Mid & More" {
		t.Fatalf("order lost: %+v", l)
	}
	if l[1].Stations[0] != (Station{Name: "A1", URL: "http://a/1"}) {
		t.Fatalf("object entry decoded as %+v", l[1].Stations[0])
	}

	out, err := encodeJSON(l, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"Zeta":[["Z1","http://z/1"]],"Alpha":[["A1","http://a/1"]],"Mid & More":[]}`
	if string(out) != want {
		t.Fatalf("encoded = %s\nwant      %s", out, want)
	}
}

func TestListJSONErrors(t *testing.T) {
	for _, in := range []string{`[]`, `{"A":[["only name"]]}`, `{"A":"x"}`} {
		var l List
		if err := json.Unmarshal([]byte(in), &l); err == nil {
			t.Errorf("Unmarshal(%s) succeeded", in)
		}
	}
}

func TestCatalogMutations(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "stations.json"))

	if c.AddCategory("EX-YU") {
		t.Fatal("duplicate category accepted")
	}
	if c.AddCategory("  ") {
		t.Fatal("blank category accepted")
	}
	if !c.AddCategory("Mine") {
		t.Fatal("AddCategory failed")
	}
	cats := c.Categories()
	if cats[len(cats)-1] != "Mine" {
		t.Fatalf("new category not last: %v", cats)
	}

	if c.AddStation("Missing", "X", "http://x") {
		t.Fatal("station added to missing category")
	}
	if !c.AddStation("Mine", "First", "http://one") || !c.AddStation("Mine", "Second", "http://two") {
		t.Fatal("AddStation failed")
	}
	if c.AddStation("Mine", "First", "http://three") {
		t.Fatal("duplicate name accepted")
	}
	if c.AddStation("Mine", "Third", "http://two") {
		t.Fatal("duplicate url accepted")
	}

	if c.RemoveStation("Mine", 2) || c.RemoveStation("Mine", -1) || c.RemoveStation("Nope", 0) {
		t.Fatal("out of range removal succeeded")
	}
	if !c.RemoveStation("Mine", 0) {
		t.Fatal("RemoveStation failed")
	}
	if got := c.Stations("Mine"); len(got) != 1 || got[0].Name != "Second" {
		t.Fatalf("Stations(Mine) = %+v", got)
	}

	if cat, st, ok := c.Find("http://two"); !ok || cat != "Mine" || st.Name != "Second" {
		t.Fatalf("Find = %q, %+v, %v", cat, st, ok)
	}

	if !c.RemoveCategory("Mine") || c.RemoveCategory("Mine") {
		t.Fatal("RemoveCategory mismatch")
	}
	if c.Stations("Mine") != nil {
		t.Fatal("removed category still has stations")
	}
}

func TestCatalogSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "stations.json")
	c := New(path)
	changed := 0
	c.OnChanged(func() { changed++ })

	c.AddCategory("Ćirilica & Co")
	c.AddStation("Ćirilica & Co", "Радио", "http://r/1")
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if changed != 1 {
		t.Fatalf("listeners called %d times after Save", changed)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(raw), `"Ćirilica & Co": [`) || !strings.Contains(string(raw), `"Радио"`) {
		t.Fatalf("file not human readable:\n%s", raw)
	}

	other := New(path)
	if err := other.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := other.Stations("Ćirilica & Co"); len(got) != 1 || got[0].URL != "http://r/1" {
		t.Fatalf("reloaded stations = %+v", got)
	}
	if a, b := c.Categories(), other.Categories(); strings.Join(a, "|") != strings.Join(b, "|") {
		t.Fatalf("category order changed: %v vs %v", a, b)
	}
}

func TestCatalogLoadEdgeCases(t *testing.T) {
	dir := t.TempDir()

	missing := New(filepath.Join(dir, "none.json"))
	if err := missing.Load(); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if len(missing.Categories()) != len(Defaults()) {
		t.Fatal("missing file should keep defaults")
	}

	emptyPath := filepath.Join(dir, "empty.json")
	os.WriteFile(emptyPath, []byte("{}"), 0o644)
	empty := New(emptyPath)
	empty.AddCategory("Kept")
	if err := empty.Load(); err != nil {
		t.Fatalf("empty object: %v", err)
	}
	if cats := empty.Categories(); cats[len(cats)-1] != "Kept" {
		t.Fatal("empty object should keep current catalog")
	}

	brokenPath := filepath.Join(dir, "broken.json")
	os.WriteFile(brokenPath, []byte("{not json"), 0o644)
	broken := New(brokenPath)
	broken.AddCategory("Lost")
	changed := false
	broken.OnChanged(func() { changed = true })
	if err := broken.Refresh(); err == nil {
		t.Fatal("expected parse error")
	}
	if !changed {
		t.Fatal("Refresh should notify even on error")
	}
	if len(broken.Categories()) != len(Defaults()) {
		t.Fatal("broken file should reset to defaults")
	}

	unreadable := New(t.TempDir())
	unreadable.AddCategory("Mine")
	if err := unreadable.Load(); err == nil {
		t.Fatal("expected read error for a directory")
	}
	if cats := unreadable.Categories(); len(cats) != len(Defaults()) || cats[len(cats)-1] == "Mine" {
		t.Fatalf("unreadable file should reset to defaults, got %v", cats)
	}
}

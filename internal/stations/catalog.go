// Package stations keeps the station catalog: categories in display order,
// each holding an ordered list of (name, URL) pairs, persisted as JSON.
package stations

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

//go:embed defaults.json
var defaultsJSON []byte

// Station is a single stream entry. On disk it is a ["name", "url"] pair.
type Station struct {
	Name string
	URL  string
}

func (s Station) MarshalJSON() ([]byte, error) {
	return encodeJSON([2]string{s.Name, s.URL}, "")
}

// UnmarshalJSON accepts ["name", "url"] pairs and {"name": .., "url": ..}
// objects.
func (s *Station) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err == nil {
		if len(pair) < 2 {
			return errors.Errorf("station entry needs name and url, got %d fields", len(pair))
		}
		s.Name, s.URL = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, "decode station")
	}
	s.Name, s.URL = obj.Name, obj.URL
	return nil
}

// Category is a named group of stations.
type Category struct {
	Name     string
	Stations []Station
}

// List is an ordered set of categories. It encodes as a JSON object whose key
// order follows the list.
type List []Category

func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeJSON(c.Name, "")
		if err != nil {
			return nil, err
		}
		stations := c.Stations
		if stations == nil {
			stations = []Station{}
		}
		val, err := encodeJSON(stations, "")
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *List) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("catalog must be a JSON object")
	}
	var out List
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "read category name")
		}
		name, _ := tok.(string)
		var stations []Station
		if err := dec.Decode(&stations); err != nil {
			return errors.Wrapf(err, "category %q", name)
		}
		out = out.set(name, stations)
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "read catalog end")
	}
	*l = out
	return nil
}

// set replaces a category's stations, appending the category if needed.
func (l List) set(name string, stations []Station) List {
	for i := range l {
		if l[i].Name == name {
			l[i].Stations = stations
			return l
		}
	}
	return append(l, Category{Name: name, Stations: stations})
}

func (l List) index(name string) int {
	for i := range l {
		if l[i].Name == name {
			return i
		}
	}
	return -1
}

func (l List) clone() List {
	out := make(List, len(l))
	for i, c := range l {
		out[i] = Category{Name: c.Name, Stations: append([]Station(nil), c.Stations...)}
	}
	return out
}

// Defaults returns the built-in catalog.
func Defaults() List {
	var l List
	if err := json.Unmarshal(defaultsJSON, &l); err != nil {
		panic(errors.Wrap(err, "embedded station defaults"))
	}
	return l
}

// Catalog is the mutable, file-backed station list. Mutations only touch
// memory until Save is called.
type Catalog struct {
	mu        sync.RWMutex
	path      string
	list      List
	listeners []func()
}

// New returns a catalog seeded with Defaults that persists to path.
func New(path string) *Catalog {
	return &Catalog{path: path, list: Defaults()}
}

// Path is the JSON file backing the catalog.
func (c *Catalog) Path() string { return c.path }

// Load replaces the catalog with the file contents. A missing file keeps the
// current contents, an empty object too. An unreadable or broken file resets
// the catalog to the defaults and reports the error.
func (c *Catalog) Load() error {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		c.mu.Lock()
		c.list = Defaults()
		c.mu.Unlock()
		return errors.Wrapf(err, "read %s", c.path)
	}
	var l List
	if err := json.Unmarshal(b, &l); err != nil {
		c.mu.Lock()
		c.list = Defaults()
		c.mu.Unlock()
		return errors.Wrapf(err, "parse %s", c.path)
	}
	if len(l) == 0 {
		return nil
	}
	c.mu.Lock()
	c.list = l
	c.mu.Unlock()
	return nil
}

// Save writes the catalog as indented JSON and notifies listeners.
func (c *Catalog) Save() error {
	c.mu.RLock()
	b, err := encodeJSON(c.list, "  ")
	c.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.Wrap(err, "create catalog dir")
	}
	if err := os.WriteFile(c.path, append(b, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", c.path)
	}
	c.notify()
	return nil
}

// Refresh reloads the file and notifies listeners, even when loading failed.
func (c *Catalog) Refresh() error {
	err := c.Load()
	c.notify()
	return err
}

// OnChanged registers fn to run after Save and Refresh.
func (c *Catalog) OnChanged(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Catalog) notify() {
	c.mu.RLock()
	fns := append([]func(){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// Categories lists category names in display order.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.list))
	for i, cat := range c.list {
		out[i] = cat.Name
	}
	return out
}

// Stations returns a copy of the stations in category, or nil.
func (c *Catalog) Stations(category string) []Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.list.index(category); i >= 0 {
		return append([]Station(nil), c.list[i].Stations...)
	}
	return nil
}

// Snapshot returns a deep copy of the whole catalog.
func (c *Catalog) Snapshot() List {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.clone()
}

// Find looks a station up by URL.
func (c *Catalog) Find(url string) (category string, st Station, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.list {
		for _, s := range cat.Stations {
			if s.URL == url {
				return cat.Name, s, true
			}
		}
	}
	return "", Station{}, false
}

// AddCategory appends an empty category. It fails for blank or existing names.
func (c *Catalog) AddCategory(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.list.index(name) >= 0 {
		return false
	}
	c.list = append(c.list, Category{Name: name})
	return true
}

func (c *Catalog) RemoveCategory(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.list.index(name)
	if i < 0 {
		return false
	}
	c.list = append(c.list[:i], c.list[i+1:]...)
	return true
}

// AddStation appends a station to category. It fails when the category does
// not exist or when the name or URL is already listed there.
func (c *Catalog) AddStation(category, name, url string) bool {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.list.index(category)
	if i < 0 {
		return false
	}
	for _, s := range c.list[i].Stations {
		if s.Name == name || s.URL == url {
			return false
		}
	}
	c.list[i].Stations = append(c.list[i].Stations, Station{Name: name, URL: url})
	return true
}

func (c *Catalog) RemoveStation(category string, index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.list.index(category)
	if i < 0 || index < 0 || index >= len(c.list[i].Stations) {
		return false
	}
	st := c.list[i].Stations
	c.list[i].Stations = append(st[:index], st[index+1:]...)
	return true
}

// encodeJSON marshals v without HTML escaping so names like "Techno & Trance"
// stay readable on disk.
func encodeJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

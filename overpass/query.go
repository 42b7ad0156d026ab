package overpass

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/paulmach/orb"
)

//go:embed query.tmpl
var queryTmplText string
var queryTmpl = template.Must(template.New("query").Parse(queryTmplText))

const defaultTimeout = 180

// Tags selects features by tag. A key with no values matches any value of
// that key. Keys are combined as a union, so a feature matching any key is
// selected.
type Tags map[string][]string

// Filters renders one Overpass tag filter per key, sorted by key.
func (t Tags) Filters() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		values := t[k]
		if len(values) == 0 {
			out = append(out, fmt.Sprintf(`["%s"]`, escape(k)))
			continue
		}
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = escape(regexp.QuoteMeta(v))
		}
		out = append(out, fmt.Sprintf(`["%s"~"^(%s)$"]`, escape(k), strings.Join(quoted, "|")))
	}
	return out
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// BBoxQuery selects features matching tags inside bound, recursing down to
// their nodes.
func BBoxQuery(bound orb.Bound, tags Tags) (string, error) {
	area := fmt.Sprintf("%f,%f,%f,%f", bound.Bottom(), bound.Left(), bound.Top(), bound.Right())
	return render(area, tags)
}

// AroundQuery selects features matching tags within radius meters of point.
func AroundQuery(point orb.Point, radius float64, tags Tags) (string, error) {
	area := fmt.Sprintf("around:%s,%f,%f", strconv.FormatFloat(radius, 'f', -1, 64), point.Lat(), point.Lon())
	return render(area, tags)
}

func render(area string, tags Tags) (string, error) {
	filters := tags.Filters()
	if len(filters) == 0 {
		return "", fmt.Errorf("no tags to query")
	}

	var sb strings.Builder
	err := queryTmpl.Execute(&sb, struct {
		Timeout int
		Area    string
		Filters []string
	}{defaultTimeout, area, filters})
	if err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return sb.String(), nil
}

// Match reports whether tags satisfy any of the filters.
func (t Tags) Match(tags map[string]string) bool {
	for k, values := range t {
		v, ok := tags[k]
		if !ok {
			continue
		}
		if len(values) == 0 || slices.Contains(values, v) {
			return true
		}
	}
	return false
}

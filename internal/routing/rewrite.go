package routing

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
)

// placeholder matches "{name}" and "{name:regexp}" segments.
var placeholder = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)

// Rewrite turns URL options into a path using the first entry that can
// generate them. "controller" and "action" select the entry; options
// named by pattern parameters fill the path; anything left over becomes
// the query string, sorted by key.
func (rs *RouteSet) Rewrite(opts controller.URLOptions) (string, error) {
	ctrl := opts["controller"]
	action := opts["action"]

	for _, e := range rs.entries {
		if e.route.Controller.Name() != ctrl {
			continue
		}
		if e.route.Action != "" && action != "" && action != e.route.Action {
			continue
		}
		if e.route.Action == "" && action == "" {
			continue
		}
		if path, ok := e.generate(opts); ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrNoURL, map[string]string(opts))
}

func (e *entry) generate(opts controller.URLOptions) (string, bool) {
	used := map[string]bool{"controller": true, "action": true}
	missing := false

	path := placeholder.ReplaceAllStringFunc(e.route.Pattern, func(seg string) string {
		name := placeholder.FindStringSubmatch(seg)[1]
		v, ok := opts[name]
		if !ok || v == "" {
			missing = true
			return seg
		}
		used[name] = true
		return url.PathEscape(v)
	})
	if strings.HasSuffix(path, "*") {
		rest, ok := opts["*"]
		if !ok {
			return "", false
		}
		used["*"] = true
		path = strings.TrimSuffix(path, "*") + strings.TrimPrefix(rest, "/")
	}
	if missing {
		return "", false
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return path, true
	}
	sort.Strings(keys)
	q := make(url.Values, len(keys))
	for _, k := range keys {
		q.Set(k, opts[k])
	}
	return path + "?" + q.Encode(), true
}

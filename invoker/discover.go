package invoker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var digitsPattern = regexp.MustCompile(`\d+`)

// Build is one logical interpreter entry to execute.
type Build struct {
	Version string
	Key     []int
	Path    string
	Flags   []string
}

// Discover lists executables under opts.BinDir and selects the builds to run.
func Discover(opts Options) ([]Build, error) {
	paths, err := filepath.Glob(filepath.Join(opts.BinDir, opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", opts.Pattern, err)
	}
	return SelectBuilds(paths, opts)
}

// SelectBuilds drops prerelease builds, keeps the highest-numbered build of
// each version family and expands families at or above the variant
// threshold into one entry per variant. The result is ordered by version.
func SelectBuilds(paths []string, opts Options) ([]Build, error) {
	selector, err := regexp.Compile(opts.Selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}
	if selector.NumSubexp() < 1 {
		return nil, fmt.Errorf("selector %q has no capture group", opts.Selector)
	}

	var exclude *regexp.Regexp
	if opts.Exclude != "" {
		if exclude, err = regexp.Compile(opts.Exclude); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}

	threshold, err := parseVersionKey(opts.VariantThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid variant threshold: %w", err)
	}

	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	best := make(map[string]string)
	for _, p := range sorted {
		if exclude != nil && exclude.MatchString(filepath.Base(p)) {
			continue
		}
		m := selector.FindStringSubmatch(p)
		if m == nil || m[1] == "" {
			continue
		}
		family := m[1]
		if cur, ok := best[family]; !ok || slices.Compare(filenameNumbers(p), filenameNumbers(cur)) > 0 {
			best[family] = p
		}
	}

	var builds []Build
	for family, p := range best {
		key, err := parseVersionKey(family)
		if err != nil {
			return nil, fmt.Errorf("version %q of %s: %w", family, p, err)
		}

		if len(opts.Variants) > 0 && threshold != nil && slices.Compare(key, threshold) >= 0 {
			for _, v := range opts.Variants {
				builds = append(builds, Build{
					Version: family + v.Suffix,
					Key:     key,
					Path:    p,
					Flags:   slices.Clone(v.Flags),
				})
			}
			continue
		}

		builds = append(builds, Build{Version: family, Key: key, Path: p})
	}

	SortBuilds(builds)
	return builds, nil
}

// SortBuilds orders builds by numeric version key, then by label.
func SortBuilds(builds []Build) {
	slices.SortFunc(builds, func(a, b Build) int {
		if c := slices.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return strings.Compare(a.Version, b.Version)
	})
}

// filenameNumbers extracts every run of digits from the base name.
func filenameNumbers(path string) []int {
	var nums []int
	for _, d := range digitsPattern.FindAllString(filepath.Base(path), -1) {
		n, err := strconv.Atoi(d)
		if err != nil {
			// longer than an int; treat as larger than anything else
			n = int(^uint(0) >> 1)
		}
		nums = append(nums, n)
	}
	return nums
}

// parseVersionKey turns "3.4" into [3 4]. An empty string yields nil.
func parseVersionKey(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	key := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("non-numeric component %q in %q", part, s)
		}
		key[i] = n
	}
	return key, nil
}

package diseasecode

import (
	"sort"
	"strings"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// Master is an in-memory view of the disease code master. Codes live in one
// sorted arena with a position index, so group ranges are answered by binary
// search at read time instead of being expanded when groups are written.
type Master struct {
	version string
	arena   []string
	names   []string
	index   map[string]int
}

// NewMaster builds a master view for one classification version. Codes of
// other versions are ignored.
func NewMaster(version string, codes []*entities.DiseaseCode) *Master {
	byCode := make(map[string]string, len(codes))
	for _, c := range codes {
		if c == nil || c.Code == "" || c.ClassificationVersion != version {
			continue
		}
		byCode[c.Code] = c.Name
	}

	m := &Master{
		version: version,
		arena:   make([]string, 0, len(byCode)),
		index:   make(map[string]int, len(byCode)),
	}
	for code := range byCode {
		m.arena = append(m.arena, code)
	}
	sort.Strings(m.arena)
	m.names = make([]string, len(m.arena))
	for i, code := range m.arena {
		m.index[code] = i
		m.names[i] = byCode[code]
	}
	return m
}

// Version returns the classification version of the master
func (m *Master) Version() string {
	return m.version
}

// Len returns the number of codes in the master
func (m *Master) Len() int {
	return len(m.arena)
}

// Contains reports whether code is in the master
func (m *Master) Contains(code string) bool {
	_, ok := m.index[code]
	return ok
}

// Name returns the name of a code
func (m *Master) Name(code string) (string, bool) {
	i, ok := m.index[code]
	if !ok {
		return "", false
	}
	return m.names[i], true
}

// Range returns master codes between from and to inclusive. Subcodes of to
// (codes that start with to, such as C97.1 for C97) are part of the range.
func (m *Master) Range(from, to string) []string {
	lo := sort.SearchStrings(m.arena, from)
	hi := sort.Search(len(m.arena), func(i int) bool {
		c := m.arena[i]
		return c > to && !strings.HasPrefix(c, to)
	})
	if lo >= hi {
		return nil
	}
	return m.arena[lo:hi:hi]
}

// Expand resolves group members to the set of master codes they denote. Single
// codes missing from the master are not part of the result.
func (m *Master) Expand(members []entities.DiseaseCodeGroupMember) map[string]struct{} {
	out := make(map[string]struct{})
	for _, member := range members {
		if member.IsRange() {
			from, to := member.Range()
			for _, code := range m.Range(from, to) {
				out[code] = struct{}{}
			}
			continue
		}
		if m.Contains(member.Code()) {
			out[member.Code()] = struct{}{}
		}
	}
	return out
}

// Difference returns include minus exclude as a sorted slice
func Difference(include, exclude map[string]struct{}) []string {
	out := make([]string, 0, len(include))
	for code := range include {
		if _, excluded := exclude[code]; excluded {
			continue
		}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

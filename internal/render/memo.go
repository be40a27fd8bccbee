package render

import (
	"strconv"
	"strings"
	"sync"
)

const (
	memoCap   = 100
	memoEvict = 20
)

// Memo caches rendered cards keyed by their full input. Because Card is
// pure, a hit is always byte-identical to a fresh render. The cache is
// bounded: at capacity the oldest fifth is evicted in one sweep rather than
// one entry per insert.
type Memo struct {
	mu    sync.Mutex
	m     map[string]Output
	order []string
}

func NewMemo() *Memo {
	return &Memo{m: make(map[string]Output, memoCap)}
}

// Card renders via the cache.
func (mc *Memo) Card(in Input) Output {
	key := memoKey(in)

	mc.mu.Lock()
	if out, ok := mc.m[key]; ok {
		mc.mu.Unlock()
		return out
	}
	mc.mu.Unlock()

	out := Card(in)

	mc.mu.Lock()
	if _, ok := mc.m[key]; !ok {
		if len(mc.order) >= memoCap {
			for _, old := range mc.order[:memoEvict] {
				delete(mc.m, old)
			}
			mc.order = append(mc.order[:0], mc.order[memoEvict:]...)
		}
		mc.m[key] = out
		mc.order = append(mc.order, key)
	}
	mc.mu.Unlock()
	return out
}

// Len reports the number of cached renders.
func (mc *Memo) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.m)
}

func memoKey(in Input) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(strconv.Itoa(int(in.Kind)))
	b.WriteByte('|')
	b.WriteString(in.Name)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.Running))
	b.WriteByte('|')
	b.WriteString(in.CPU)
	b.WriteByte('|')
	b.WriteString(in.Mem)
	b.WriteByte('|')
	b.WriteString(in.Uptime)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.DetailsAllowed))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.Expanded))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.ControlAllowed))
	b.WriteByte('|')
	b.WriteString(string(in.Pending))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(in.FetchedAt.UnixNano(), 10))
	b.WriteByte('|')
	if in.Location != nil {
		b.WriteString(in.Location.String())
	}
	for _, a := range in.Actions {
		b.WriteByte('|')
		b.WriteString(string(a))
	}
	return b.String()
}

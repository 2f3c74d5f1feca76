package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyHandler is a slog.Handler that writes one indented JSON object per
// record. It is meant for a developer watching a local game, not for log
// shipping: every record is marshalled through a map.
type PrettyHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool
	indent    string

	attrs  []slog.Attr
	groups []string
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{
		w:      w,
		mu:     &sync.Mutex{},
		level:  slog.LevelInfo,
		indent: "  ",
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	record := map[string]any{
		"time":  when.Format(time.RFC3339Nano),
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	if h.addSource {
		if src := callerOf(r.PC); src != "" {
			record["source"] = src
		}
	}

	// Handler attrs are stored already nested; record attrs go under the
	// open groups.
	for _, a := range h.attrs {
		putAttr(record, a)
	}
	target := record
	for _, g := range h.groups {
		child, ok := target[g].(map[string]any)
		if !ok {
			child = map[string]any{}
			target[g] = child
		}
		target = child
	}
	r.Attrs(func(a slog.Attr) bool {
		putAttr(target, a)
		return true
	})

	out, err := json.MarshalIndent(record, "", h.indent)
	if err != nil {
		out = []byte(`{"level":` + strconv.Quote(r.Level.String()) + `,"msg":` + strconv.Quote(r.Message) + `,"marshal_error":` + strconv.Quote(err.Error()) + `}`)
	}
	out = append(out, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(out)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	if len(h.groups) > 0 {
		// Attrs added inside a group belong to that group.
		attrs = []slog.Attr{nestAttrs(h.groups, attrs)}
	}
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func nestAttrs(groups []string, attrs []slog.Attr) slog.Attr {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	a := slog.Group(groups[len(groups)-1], args...)
	for i := len(groups) - 2; i >= 0; i-- {
		a = slog.Group(groups[i], a)
	}
	return a
}

func putAttr(dst map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		members := v.Group()
		if len(members) == 0 {
			return
		}
		// An empty key inlines the group members.
		if a.Key == "" {
			for _, m := range members {
				putAttr(dst, m)
			}
			return
		}
		child, ok := dst[a.Key].(map[string]any)
		if !ok {
			child = make(map[string]any, len(members))
			dst[a.Key] = child
		}
		for _, m := range members {
			putAttr(child, m)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[a.Key] = plainValue(v)
}

func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.String()
	}
}

func callerOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}

package nbt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// arrayPreview is the number of array elements printed before eliding the rest.
const arrayPreview = 8

// Explain writes an indented, human readable rendering of t to w.
func Explain(w io.Writer, t Tag) error {
	bw := bufio.NewWriter(w)
	explain(bw, t, 0)
	return bw.Flush()
}

func explain(w *bufio.Writer, t Tag, depth int) {
	indent := strings.Repeat("  ", depth)
	name := ""
	if t.Name != "" {
		name = fmt.Sprintf("(%q)", t.Name)
	}
	switch v := t.Payload.(type) {
	case Compound:
		fmt.Fprintf(w, "%s%s%s: %d entries\n", indent, t.Type(), name, len(v))
		for _, c := range v {
			explain(w, c, depth+1)
		}
	case *List:
		fmt.Fprintf(w, "%s%s%s: %d entries of %s\n", indent, t.Type(), name, len(v.Entries), v.SubType)
		for _, c := range v.Entries {
			explain(w, c, depth+1)
		}
	case ByteArray:
		fmt.Fprintf(w, "%s%s%s: [%d bytes] %s\n", indent, t.Type(), name, len(v), preview([]byte(v)))
	case IntArray:
		fmt.Fprintf(w, "%s%s%s: [%d ints] %s\n", indent, t.Type(), name, len(v), preview([]int32(v)))
	case LongArray:
		fmt.Fprintf(w, "%s%s%s: [%d longs] %s\n", indent, t.Type(), name, len(v), preview([]int64(v)))
	case String:
		fmt.Fprintf(w, "%s%s%s: %q\n", indent, t.Type(), name, string(v))
	case nil:
		fmt.Fprintf(w, "%s%s%s\n", indent, TypeEnd, name)
	default:
		fmt.Fprintf(w, "%s%s%s: %v\n", indent, t.Type(), name, v)
	}
}

func preview[T any](v []T) string {
	if len(v) <= arrayPreview {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(fmt.Sprint(v[:arrayPreview]), "]") + " ...]"
}

package stream

// ConvertWriter makes a Writer of From values out of a Writer of To values
// and a conversion function. Writes fail on the first value the conversion
// rejects, without passing anything from that batch to the base writer.
func ConvertWriter[To, From any](base Writer[To], conv func(From) (To, error)) Writer[From] {
	return &convertWriter[To, From]{base: base, conv: conv}
}

type convertWriter[To, From any] struct {
	base Writer[To]
	to   []To
	conv func(From) (To, error)
}

func (w *convertWriter[To, From]) Write(values []From) (n int, err error) {
	defer func() {
		w.to = w.to[:0]
	}()

	for _, from := range values {
		to, err := w.conv(from)
		if err != nil {
			return 0, err
		}
		w.to = append(w.to, to)
	}

	return w.base.Write(w.to)
}

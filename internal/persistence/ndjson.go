package persistence

import (
	"InsMarket/internal/event"
	"bufio"
	"context"
	"fmt"
	"io"
)

// maxLineBytes bounds one encoded record. The largest record is a
// PolicyBound with its panel, far below this.
const maxLineBytes = 1 << 20

// WriteLog writes records as newline-delimited JSON, one record per line in
// sequence order.
func WriteLog(w io.Writer, records []event.Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		line, err := event.MarshalRecord(r.Day, r.Event)
		if err != nil {
			return fmt.Errorf("seq %d: %w", r.Seq, err)
		}
		bw.Write(line)
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write seq %d: %w", r.Seq, err)
		}
	}
	return bw.Flush()
}

// ReadLog reads a whole NDJSON log. Sequence numbers come from line order;
// blank lines are skipped and do not count.
func ReadLog(r io.Reader) ([]event.Record, error) {
	var out []event.Record
	err := scan(r, func(rec event.Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// ScanLog streams records into out until r is exhausted or ctx is done. out
// is not closed.
func ScanLog(ctx context.Context, r io.Reader, out chan<- event.Record) error {
	return scan(r, func(rec event.Record) error {
		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func scan(r io.Reader, fn func(event.Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var seq int64
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		rec, err := event.UnmarshalRecord(sc.Bytes())
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		rec.Seq = seq
		seq++
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}

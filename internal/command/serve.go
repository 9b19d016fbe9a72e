package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Serve reads one JSON command per line from r and writes one JSON response
// per line to w until r is exhausted or ctx is done. Blank lines are skipped.
func Serve(ctx context.Context, d *Dispatcher, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp Response
		var cmd Command
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			resp = Response{Error: fmt.Sprintf("unmarshal command: %v", err)}
		} else {
			resp = d.Apply(ctx, cmd)
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read command: %w", err)
	}
	return nil
}

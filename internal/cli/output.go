package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/format"
	"github.com/alnah/go-clipscribe/internal/transcribe"
)

// field is one row of a key/value listing.
type field struct {
	key, value string
}

// printFields writes aligned "key  value" rows.
func printFields(w io.Writer, fields ...field) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", f.key, f.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// printHits writes one aligned row per search hit.
func printHits(w io.Writer, hits []acquire.Hit) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, h := range hits {
		duration := "-"
		if h.Duration != nil {
			duration = format.Offset(*h.Duration)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.VideoID, duration, h.Artist, h.Title); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// transcriptText renders a transcript as timestamped lines. Translations are
// indented under their source line.
func transcriptText(t *transcribe.Transcript) string {
	var b strings.Builder
	for _, s := range t.Segments {
		fmt.Fprintf(&b, "[%s] %s\n", format.Offset(s.Start), s.Text)
		if s.Translation != "" && s.Translation != s.Text {
			fmt.Fprintf(&b, "        %s\n", s.Translation)
		}
	}
	return b.String()
}

// writeFileAtomic writes content to path.
// It fails if the file already exists (O_EXCL), preventing accidental overwrites.
// On write failure, the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}

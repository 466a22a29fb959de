package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"streamcaption/packages/go/backend/session"
)

// Format is a subtitle file format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat accepts "srt" or "vtt" in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if err := f.validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Format) validate() error {
	switch f {
	case FormatSRT, FormatVTT:
		return nil
	default:
		return fmt.Errorf("unsupported subtitle format %q", string(f))
	}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

func (f Format) separator() string {
	if f == FormatVTT {
		return "."
	}
	return ","
}

// Write renders cues as a complete subtitle file. Cue indices start at 1.
func Write(w io.Writer, format Format, cues []session.Cue) error {
	if err := format.validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if format == FormatVTT {
		if _, err := bw.WriteString("WEBVTT\n\n"); err != nil {
			return err
		}
	}
	for i, cue := range cues {
		if err := WriteCue(bw, format, i+1, cue); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCue renders a single numbered cue block.
func WriteCue(w io.Writer, format Format, index int, cue session.Cue) error {
	sep := format.separator()
	_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", index, timestamp(cue.Start, sep), timestamp(cue.End, sep), cue.Text)
	return err
}

// timestamp formats seconds as HH:MM:SS<sep>mmm.
func timestamp(seconds float64, sep string) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	hours := millis / 3_600_000
	minutes := millis / 60_000 % 60
	secs := millis / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis%1000)
}

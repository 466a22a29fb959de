package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// YtDlpConfig represents the flags passed to yt-dlp when extracting metadata.
type YtDlpConfig struct {
	Format       string
	NoPlaylist   bool
	NoWarnings   bool
	NoCheckCerts bool
	GeoBypass    bool
	NoConfig     bool
	ExtraArgs    []string
}

// DefaultYtDlpConfig selects the best audio-only format of a single video.
func DefaultYtDlpConfig() YtDlpConfig {
	return YtDlpConfig{
		Format:       "bestaudio/best",
		NoPlaylist:   true,
		NoWarnings:   true,
		NoCheckCerts: true,
		GeoBypass:    true,
		NoConfig:     true,
	}
}

// BuildArgs builds the yt-dlp argument list for a metadata dump of url.
func (c YtDlpConfig) BuildArgs(url string) []string {
	args := make([]string, 0, 16)
	// --no-config first so local configs cannot change the behaviour.
	if c.NoConfig {
		args = append(args, "--no-config")
	}
	args = append(args, "-j", "--skip-download", "--no-progress", "--no-update")
	if c.Format != "" {
		args = append(args, "-f", c.Format)
	}
	if c.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if c.NoWarnings {
		args = append(args, "--no-warnings")
	}
	if c.NoCheckCerts {
		args = append(args, "--no-check-certificates")
	}
	if c.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	args = append(args, c.ExtraArgs...)
	args = append(args, url)
	return args
}

type commandRunner func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// YtDlpResolver resolves page URLs with the yt-dlp binary.
type YtDlpResolver struct {
	path   string
	config YtDlpConfig
	run    commandRunner
}

// NewYtDlpResolver builds a resolver invoking the binary at path ("yt-dlp" when
// empty).
func NewYtDlpResolver(path string, cfg YtDlpConfig) *YtDlpResolver {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlpResolver{path: path, config: cfg, run: runCommand}
}

type ytdlpFormat struct {
	URL    string `json:"url"`
	Acodec string `json:"acodec"`
}

type ytdlpInfo struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	IsLive   bool          `json:"is_live"`
	Duration *float64      `json:"duration"`
	Formats  []ytdlpFormat `json:"formats"`
}

// Resolve runs yt-dlp and picks a direct audio URL from its JSON dump.
func (y *YtDlpResolver) Resolve(ctx context.Context, ref string) (Media, error) {
	stdout, stderr, err := y.run(ctx, y.path, y.config.BuildArgs(ref)...)
	if err != nil {
		if ctx.Err() != nil {
			return Media{}, ctx.Err()
		}
		return Media{}, fmt.Errorf("%w: yt-dlp failed: %v: %s", ErrResolution, err, strings.TrimSpace(string(stderr)))
	}
	return parseYtDlpOutput(stdout)
}

func parseYtDlpOutput(out []byte) (Media, error) {
	var jsonLine string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") {
			jsonLine = line
		}
	}
	if jsonLine == "" {
		return Media{}, fmt.Errorf("%w: no JSON in yt-dlp output", ErrResolution)
	}

	var info ytdlpInfo
	if err := json.Unmarshal([]byte(jsonLine), &info); err != nil {
		return Media{}, fmt.Errorf("%w: parse yt-dlp output: %v", ErrResolution, err)
	}

	direct := info.URL
	if direct == "" {
		// Formats are ordered worst to best.
		for i := len(info.Formats) - 1; i >= 0; i-- {
			f := info.Formats[i]
			if f.URL != "" && f.Acodec != "" && f.Acodec != "none" {
				direct = f.URL
				break
			}
		}
	}
	if direct == "" {
		return Media{}, fmt.Errorf("%w: no playable audio URL found", ErrResolution)
	}

	return Media{
		DirectURL: direct,
		IsLive:    info.IsLive,
		Title:     info.Title,
		ID:        info.ID,
		Duration:  info.Duration,
	}, nil
}

var _ Resolver = (*YtDlpResolver)(nil)

package crashlog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LightIndexBase is the load order index assigned to the first FE light plugin.
// Light plugins are numbered LightIndexBase + their three-digit hex sub-index.
const LightIndexBase = 0xFE000

// ErrMalformed is the sentinel wrapped by every ParseError.
var ErrMalformed = errors.New("malformed crash log")

// ParseError describes why a crash log could not be parsed.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("parse %s:%d: %s", e.Path, e.Line, e.Reason)
	case e.Path != "":
		return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
	default:
		return "parse: " + e.Reason
	}
}

// Unwrap returns ErrMalformed so callers can use errors.Is.
func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

// Parser turns raw crash log text into a CrashLog.
type Parser interface {
	Parse(path, text string) (*CrashLog, error)
}

// SegmentParser parses the segment-based crash dump format written by
// Buffout 4 style crash generators.
type SegmentParser struct {
	// Simplify drops every line containing one of NoisePatterns.
	Simplify bool

	// NoisePatterns are substrings of lines that carry no diagnostic value.
	NoisePatterns []string
}

var (
	generatorLine = regexp.MustCompile(`^(.+?)\s+v(\d+(?:\.\d+)+)`)
	segmentLine   = regexp.MustCompile(`^([A-Z0-9][A-Z0-9 ]*):\s*$`)
	xseSegment    = regexp.MustCompile(`^[A-Z0-9]+SE PLUGINS$`)
	sectionLine   = regexp.MustCompile(`^\s+\[([^\]]+)\]\s*$`)
	settingLine   = regexp.MustCompile(`^\s+([^:\[\]]+?):\s*(.*?)\s*$`)
	pluginLine    = regexp.MustCompile(`^\s*\[(FE:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{2})\]\s+(.+?)\s*$`)
)

const unhandledPrefix = "Unhandled exception"

// Parse implements Parser.
func (p *SegmentParser) Parse(path, text string) (*CrashLog, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Path: path, Reason: "empty input"}
	}

	lines := splitLines(text)
	if p.Simplify {
		lines = p.simplify(lines)
	}

	log := &CrashLog{
		Path:         path,
		Lines:        lines,
		Settings:     make(map[string]string),
		Plugins:      make(map[string]int),
		pluginsLower: make(map[string]string),
	}

	p.parseHeader(log, lines)

	if log.Generator == "" && log.MainError == "" {
		return nil, &ParseError{Path: path, Line: 1, Reason: "no crash generator header or exception line"}
	}

	sawPlugins, err := p.parseSegments(log, lines)
	if err != nil {
		return nil, err
	}

	log.Incomplete = !sawPlugins

	return log, nil
}

func (p *SegmentParser) simplify(lines []string) []string {
	if len(p.NoisePatterns) == 0 {
		return lines
	}

	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		noisy := false

		for _, pattern := range p.NoisePatterns {
			if pattern != "" && strings.Contains(line, pattern) {
				noisy = true

				break
			}
		}

		if !noisy {
			kept = append(kept, line)
		}
	}

	return kept
}

// parseHeader reads the game version, generator and main error lines that
// precede the first segment.
func (p *SegmentParser) parseHeader(log *CrashLog, lines []string) {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if segmentLine.MatchString(raw) {
			return
		}

		if strings.HasPrefix(line, unhandledPrefix) {
			log.MainError = line

			continue
		}

		if log.GameVersion == "" && i == firstNonEmpty(lines) {
			log.GameVersion = line

			continue
		}

		if log.Generator == "" {
			if m := generatorLine.FindStringSubmatch(line); m != nil {
				log.Generator = m[1]
				log.GeneratorVersion = m[2]
			}
		}
	}
}

// parseSegments walks the settings block and every named segment.
// It reports whether the PLUGINS segment was present.
func (p *SegmentParser) parseSegments(log *CrashLog, lines []string) (bool, error) {
	segment := ""
	section := ""
	sawPlugins := false

	for i, raw := range lines {
		if m := segmentLine.FindStringSubmatch(raw); m != nil {
			segment = normalizeSegment(m[1])
			if segment == SegmentPlugins {
				sawPlugins = true
			}

			continue
		}

		if strings.TrimSpace(raw) == "" {
			continue
		}

		switch segment {
		case "":
			section = parseSetting(log, raw, section)
		case SegmentSystemSpecs:
			log.SystemSpecs = append(log.SystemSpecs, strings.TrimSpace(raw))
		case SegmentCallStack:
			log.CallStack = append(log.CallStack, strings.TrimSpace(raw))
		case SegmentModules:
			log.Modules = append(log.Modules, strings.TrimSpace(raw))
		case SegmentXSEPlugins:
			log.XSEPlugins = append(log.XSEPlugins, strings.TrimSpace(raw))
		case SegmentPlugins:
			err := addPlugin(log, raw, i+1)
			if err != nil {
				return false, err
			}
		}
	}

	return sawPlugins, nil
}

func parseSetting(log *CrashLog, raw, section string) string {
	if m := sectionLine.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	if section == "" {
		return section
	}

	if m := settingLine.FindStringSubmatch(raw); m != nil {
		log.Settings[SettingKey(section, m[1])] = m[2]
	}

	return section
}

func addPlugin(log *CrashLog, raw string, lineNo int) error {
	m := pluginLine.FindStringSubmatch(raw)
	if m == nil {
		// Plugins written without an index (e.g. disabled masters) carry no load order.
		return nil
	}

	idx, err := parseLoadOrder(m[1])
	if err != nil {
		return &ParseError{Path: log.Path, Line: lineNo, Reason: err.Error()}
	}

	name := m[2]
	if _, dup := log.Plugins[name]; !dup {
		log.PluginOrder = append(log.PluginOrder, name)
	}

	log.Plugins[name] = idx
	log.pluginsLower[strings.ToLower(name)] = name

	return nil
}

func parseLoadOrder(token string) (int, error) {
	if sub, ok := strings.CutPrefix(token, "FE:"); ok {
		v, err := strconv.ParseInt(sub, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid light plugin index %q: %w", token, err)
		}

		return LightIndexBase + int(v), nil
	}

	v, err := strconv.ParseInt(token, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid plugin index %q: %w", token, err)
	}

	return int(v), nil
}

func normalizeSegment(name string) string {
	name = strings.TrimSpace(name)
	if xseSegment.MatchString(name) {
		return SegmentXSEPlugins
	}

	return name
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func firstNonEmpty(lines []string) int {
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			return i
		}
	}

	return -1
}

// Package crashlog provides the parsed representation of a game crash log
// and the segment grammar that produces it.
package crashlog

import (
	"slices"
	"strings"
)

// Well-known segment names emitted by the crash generator.
const (
	SegmentSystemSpecs = "SYSTEM SPECS"
	SegmentCallStack   = "PROBABLE CALL STACK"
	SegmentRegisters   = "REGISTERS"
	SegmentStack       = "STACK"
	SegmentModules     = "MODULES"
	SegmentXSEPlugins  = "XSE PLUGINS"
	SegmentPlugins     = "PLUGINS"
)

// CrashLog is one parsed crash log. It is never modified after Parse returns;
// analyzers must treat every field as read-only.
type CrashLog struct {
	// Path is the normalized source path, empty when parsed from memory.
	Path string

	// Lines holds the original text lines (after optional simplification).
	Lines []string

	// GameVersion is the first header line, e.g. "Fallout 4 v1.10.163".
	GameVersion string

	// Generator is the crash generator name, e.g. "Buffout 4".
	Generator string

	// GeneratorVersion is the crash generator version without the "v" prefix.
	GeneratorVersion string

	// MainError is the "Unhandled exception" line.
	MainError string

	// Settings maps "Section.Key" to the crash generator setting value.
	Settings map[string]string

	// CallStack holds the PROBABLE CALL STACK segment lines.
	CallStack []string

	// Modules holds the MODULES segment lines.
	Modules []string

	// XSEPlugins holds the script extender plugin segment lines.
	XSEPlugins []string

	// SystemSpecs holds the SYSTEM SPECS segment lines.
	SystemSpecs []string

	// Plugins maps plugin file name to load order index.
	Plugins map[string]int

	// PluginOrder lists plugin names in the order they appear in the log.
	PluginOrder []string

	// Incomplete is set when the log ends before the plugin list.
	Incomplete bool

	pluginsLower map[string]string
}

// SettingKey builds the Settings map key for a section and key.
func SettingKey(section, key string) string {
	return section + "." + key
}

// Setting returns the value of a crash generator setting.
func (c *CrashLog) Setting(section, key string) (string, bool) {
	v, ok := c.Settings[SettingKey(section, key)]

	return v, ok
}

// HasPlugin reports whether a plugin with the given name (case-insensitive) is loaded.
func (c *CrashLog) HasPlugin(name string) bool {
	_, ok := c.pluginsLower[strings.ToLower(name)]

	return ok
}

// HasXSEPlugin reports whether any script extender plugin line contains name (case-insensitive).
func (c *CrashLog) HasXSEPlugin(name string) bool {
	needle := strings.ToLower(name)

	return slices.ContainsFunc(c.XSEPlugins, func(line string) bool {
		return strings.Contains(strings.ToLower(line), needle)
	})
}

// FullPluginCount returns the number of plugins occupying a full load order slot.
func (c *CrashLog) FullPluginCount() int {
	count := 0

	for _, idx := range c.Plugins {
		if idx < LightIndexBase {
			count++
		}
	}

	return count
}

// LightPluginCount returns the number of plugins loaded in the FE light slot.
func (c *CrashLog) LightPluginCount() int {
	return len(c.Plugins) - c.FullPluginCount()
}

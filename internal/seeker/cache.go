package seeker

// patternEntry is one cached pattern result. partial marks entries stored
// by a first-hit search, which hold only the single path the scan stopped
// at.
type patternEntry struct {
	paths   []string
	partial bool
}

// extractionCache owns the two per-instance mappings every backend keeps:
// pattern string to resolved local paths, and source identity to the local
// path it was materialized at. It also holds the FileInfo record table.
// One backend instance owns one cache; there is no sharing.
type extractionCache struct {
	patterns map[string]patternEntry
	items    map[string]string
	infos    map[string]FileInfo
}

func newExtractionCache() *extractionCache {
	return &extractionCache{
		patterns: make(map[string]patternEntry),
		items:    make(map[string]string),
		infos:    make(map[string]FileInfo),
	}
}

// pattern returns the cached result list for p. When wantFull is true a
// partial entry does not count as a hit, forcing the caller to rescan.
func (c *extractionCache) pattern(p string, wantFull bool) ([]string, bool) {
	entry, ok := c.patterns[p]
	if !ok {
		return nil, false
	}
	if wantFull && entry.partial {
		return nil, false
	}
	return entry.paths, true
}

func (c *extractionCache) storePattern(p string, paths []string, partial bool) {
	c.patterns[p] = patternEntry{paths: paths, partial: partial}
}

// localPath returns where a source item was already materialized.
func (c *extractionCache) localPath(item string) (string, bool) {
	path, ok := c.items[item]
	return path, ok
}

func (c *extractionCache) storeItem(item, local string, info FileInfo) {
	c.items[item] = local
	c.infos[local] = info
}

func (c *extractionCache) info(local string) (FileInfo, bool) {
	fi, ok := c.infos[local]
	return fi, ok
}

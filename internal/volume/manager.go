// Package volume implements the volume manager (spec §4.1): discovery,
// stable VolumeId assignment, GUID/drive-letter resolution, and applying
// per-volume configuration overrides (include/exclude paths,
// content-indexing) on top of whatever the watcher layer reports.
package volume

import (
	"context"
	"fmt"

	"ultrasearch/internal/config"
	"ultrasearch/internal/ids"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/statefile"
	"ultrasearch/pkg/models"
)

// Manager wraps a ntfswatcher.Watcher, persisting and restoring each
// volume's journal cursor across restarts and applying the
// configuration overlay named in spec §6 (`[volumes."C:"]` sections).
type Manager struct {
	watcher  ntfswatcher.Watcher
	stateDir string
	sections map[string]config.VolumeSection
}

// New builds a Manager. sections maps a GUID path or drive letter (as
// written in config.toml) to its override block.
func New(watcher ntfswatcher.Watcher, stateDir string, sections map[string]config.VolumeSection) *Manager {
	return &Manager{watcher: watcher, stateDir: stateDir, sections: sections}
}

// Discover enumerates volumes (delegating VolumeId assignment to the
// watcher, which per spec §4.1 must return previously-assigned ids for
// still-present volumes matched by GUID path), restores each volume's
// persisted journal cursor, and applies the configuration overlay.
func (m *Manager) Discover(ctx context.Context) ([]models.Volume, error) {
	vols, err := m.watcher.DiscoverVolumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("volume: discover: %w", err)
	}

	for i := range vols {
		v := &vols[i]
		m.applyOverrides(v)

		st, err := statefile.Load(m.stateDir, v.GUIDPath)
		if err == nil {
			v.LastUsn = st.LastUsn
			v.JournalID = st.JournalID
			v.LastGeneration = st.LastMFTScanGeneration
			if !sectionOverridesContentIndexing(m.sections, v) {
				v.ContentIndexing = st.Settings.ContentIndexing
			}
			if len(v.IncludePaths) == 0 {
				v.IncludePaths = st.Settings.IncludePaths
			}
			if len(v.ExcludePaths) == 0 {
				v.ExcludePaths = st.Settings.ExcludePaths
			}
		}
	}
	return vols, nil
}

func (m *Manager) applyOverrides(v *models.Volume) {
	if sec, ok := m.sections[v.GUIDPath]; ok {
		applySection(v, sec)
		return
	}
	for _, letter := range v.DriveLetters {
		if sec, ok := m.sections[letter]; ok {
			applySection(v, sec)
			return
		}
	}
}

func applySection(v *models.Volume, sec config.VolumeSection) {
	if len(sec.IncludePaths) > 0 {
		v.IncludePaths = sec.IncludePaths
	}
	if len(sec.ExcludePaths) > 0 {
		v.ExcludePaths = sec.ExcludePaths
	}
	v.ContentIndexing = sec.ContentIndexing
}

func sectionOverridesContentIndexing(sections map[string]config.VolumeSection, v *models.Volume) bool {
	if _, ok := sections[v.GUIDPath]; ok {
		return true
	}
	for _, letter := range v.DriveLetters {
		if _, ok := sections[letter]; ok {
			return true
		}
	}
	return false
}

// PersistState writes v's current journal cursor and settings to the
// volume-state archive, the atomic-rewrite-after-each-commit discipline
// named in spec §4.1/§3.
func (m *Manager) PersistState(v models.Volume) error {
	st := models.VolumeState{
		SchemaVersion:         1,
		VolumeGUID:            v.GUIDPath,
		VolumeID:              v.ID,
		JournalID:             v.JournalID,
		LastUsn:               v.LastUsn,
		LastMFTScanGeneration: v.LastGeneration,
		Settings: models.VolumeSettings{
			IncludePaths:    v.IncludePaths,
			ExcludePaths:    v.ExcludePaths,
			ContentIndexing: v.ContentIndexing,
		},
	}
	return statefile.Save(m.stateDir, st)
}

// ByID returns the volume matching id from a freshly discovered slice, or
// false if absent (meaning the volume was removed since the last Discover).
func ByID(vols []models.Volume, id ids.VolumeId) (models.Volume, bool) {
	for _, v := range vols {
		if v.ID == id {
			return v, true
		}
	}
	return models.Volume{}, false
}

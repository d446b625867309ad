package service

import "ultrasearch/internal/ipcproto"

// buildStatus reports per-volume and per-component health, per spec §7:
// "Status always reports health per volume and per component."
func (s *Service) buildStatus() *ipcproto.StatusResponse {
	s.mu.RLock()
	vols := make([]ipcproto.VolumeStatus, 0, len(s.knownVols))
	for _, v := range s.knownVols {
		vols = append(vols, ipcproto.VolumeStatus{
			VolumeID:        uint16(v.ID),
			GUIDPath:        v.GUIDPath,
			Healthy:         !v.Unhealthy,
			UnhealthyReason: v.UnhealthyReason,
			LastUsn:         int64(v.LastUsn),
			LastGeneration:  v.LastGeneration,
		})
	}
	s.mu.RUnlock()

	return &ipcproto.StatusResponse{
		Volumes:        vols,
		MetaIndexOK:    s.metaHealthy,
		ContentIndexOK: s.contentOK,
		IdleState:      s.idle.State().String(),
		PendingJobs: ipcproto.PendingJobs{
			CriticalUpdate:  s.queues.CriticalUpdate.Len(),
			MetadataRebuild: s.queues.MetadataRebuild.Len(),
			ContentBatch:    s.queues.ContentBatch.Len(),
		},
	}
}

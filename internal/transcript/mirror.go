package transcript

import (
	"context"

	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

// Mirror saves to a primary store and then to each mirror. Only a primary
// failure is returned.
type Mirror struct {
	primary Store
	mirrors []Store
}

func NewMirror(primary Store, mirrors ...Store) *Mirror {
	return &Mirror{primary: primary, mirrors: mirrors}
}

func (m *Mirror) Save(ctx context.Context, f File) error {
	if err := m.primary.Save(ctx, f); err != nil {
		return err
	}
	for _, s := range m.mirrors {
		if err := s.Save(ctx, f); err != nil {
			log.Warn("transcript mirror failed for lecture %s: %v", f.LectureID, err)
		}
	}
	return nil
}

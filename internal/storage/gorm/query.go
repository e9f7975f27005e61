package gormstorage

import (
	"fmt"

	"github.com/uell/livelink/internal/model"
	"github.com/uell/livelink/internal/model/convert"
	"github.com/uell/livelink/pkg/core"
	"gorm.io/gorm"
)

// ListSessions returns stored sessions, newest first.
func ListSessions(db *gorm.DB) ([]core.Session, error) {
	var rows []model.Session
	if err := db.Order("start_time desc, id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	out := make([]core.Session, len(rows))
	for i, r := range rows {
		out[i] = convert.SessionToCore(r)
	}
	return out, nil
}

// Recording is a stored session with everything recorded for it.
type Recording struct {
	Session core.Session
	Frames  []core.Frame
	Ticks   []core.TickStats
}

// LoadSession reads a session and its frames and ticks.
func LoadSession(db *gorm.DB, id uint) (Recording, error) {
	var rec Recording

	var sess model.Session
	if err := db.First(&sess, id).Error; err != nil {
		return rec, fmt.Errorf("loading session %d: %w", id, err)
	}
	rec.Session = convert.SessionToCore(sess)

	var bones []model.BoneState
	if err := db.Where("session_id = ?", id).Order("tick, id").Find(&bones).Error; err != nil {
		return rec, fmt.Errorf("loading bone states: %w", err)
	}
	var cameras []model.CameraState
	if err := db.Where("session_id = ?", id).Order("tick, id").Find(&cameras).Error; err != nil {
		return rec, fmt.Errorf("loading camera states: %w", err)
	}
	rec.Frames = convert.StatesToFrames(bones, cameras)

	var ticks []model.TickStat
	if err := db.Where("session_id = ?", id).Order("tick").Find(&ticks).Error; err != nil {
		return rec, fmt.Errorf("loading tick stats: %w", err)
	}
	rec.Ticks = make([]core.TickStats, len(ticks))
	for i, t := range ticks {
		rec.Ticks[i] = convert.TickToCore(t)
	}
	return rec, nil
}

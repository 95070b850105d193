// Package history persists finished sessions to the archive database.
package history

import (
	"encoding/json"
	"fmt"

	"github.com/arenalab/arena/internal/models"
	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
	"github.com/arenalab/arena/internal/truncate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Archive stores session snapshots.
type Archive struct {
	db *gorm.DB
}

// NewArchive wraps an opened database.
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// Save upserts a finished session snapshot. Sessions where any answer is
// still streaming are rejected.
func (a *Archive) Save(snap store.SessionSnapshot, budget int) error {
	for _, ans := range snap.Answers {
		if !ans.IsComplete && ans.Error == "" {
			return fmt.Errorf("history: session %s has unsettled answers", snap.ID)
		}
	}

	rec := models.ArchivedSession{
		SessionID:        snap.ID,
		TaskID:           snap.TaskID,
		Title:            snap.Title,
		Question:         snap.Question,
		ServerQuestionID: snap.ServerQuestionID,
		VotedAnswerID:    snap.VotedAnswerID,
	}
	for _, ans := range snap.Answers {
		rec.Answers = append(rec.Answers, toArchivedAnswer(ans, budget))
	}

	return a.db.Transaction(func(tx *gorm.DB) error {
		var existing models.ArchivedSession
		err := tx.Where("session_id = ?", snap.ID).First(&existing).Error
		if err == nil {
			// Re-archiving replaces the previous rows for this session.
			if err := deleteAnswers(tx, existing.ID); err != nil {
				return err
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("history: replace session %s: %w", snap.ID, err)
			}
		} else if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("history: lookup session %s: %w", snap.ID, err)
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("history: save session %s: %w", snap.ID, err)
		}
		return nil
	})
}

func deleteAnswers(tx *gorm.DB, sessionRef uint) error {
	var answers []models.ArchivedAnswer
	if err := tx.Where("session_ref = ?", sessionRef).Find(&answers).Error; err != nil {
		return fmt.Errorf("history: load answers: %w", err)
	}
	for _, ans := range answers {
		if err := tx.Where("answer_ref = ?", ans.ID).Delete(&models.ArchivedCitation{}).Error; err != nil {
			return fmt.Errorf("history: delete citations: %w", err)
		}
	}
	if err := tx.Where("session_ref = ?", sessionRef).Delete(&models.ArchivedAnswer{}).Error; err != nil {
		return fmt.Errorf("history: delete answers: %w", err)
	}
	return nil
}

func toArchivedAnswer(ans store.AnswerView, budget int) models.ArchivedAnswer {
	rec := models.ArchivedAnswer{
		AnswerID:   ans.ID,
		ProviderID: ans.ProviderID,
		Content:    ans.Content,
		Err:        ans.Error,
		Truncated:  truncate.IsTruncated(ans.Content, budget),
	}
	for _, cit := range ans.Citations {
		labels, err := json.Marshal(cit.Labels)
		if err != nil {
			labels = []byte("[]")
		}
		rec.Citations = append(rec.Citations, models.ArchivedCitation{
			RefID:     cit.RefID,
			Summary:   cit.Summary,
			StartTime: cit.StartTime,
			EndTime:   cit.EndTime,
			Duration:  cit.Duration,
			Labels:    string(labels),
		})
	}
	return rec
}

// List returns the most recently updated archived sessions, newest first.
func (a *Archive) List(limit int) ([]models.ArchivedSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var sessions []models.ArchivedSession
	err := a.db.Order(clause.OrderByColumn{Column: clause.Column{Name: "updated_at"}, Desc: true}).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("history: list sessions: %w", err)
	}
	return sessions, nil
}

// Load fetches one archived session with its answers and citations.
func (a *Archive) Load(sessionID string) (models.ArchivedSession, error) {
	var sess models.ArchivedSession
	err := a.db.Preload("Answers.Citations").Preload("Answers").
		Where("session_id = ?", sessionID).First(&sess).Error
	if err != nil {
		return models.ArchivedSession{}, fmt.Errorf("history: load session %s: %w", sessionID, err)
	}
	return sess, nil
}

// Delete removes an archived session and its rows.
func (a *Archive) Delete(sessionID string) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		var sess models.ArchivedSession
		err := tx.Where("session_id = ?", sessionID).First(&sess).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("history: lookup session %s: %w", sessionID, err)
		}
		if err := deleteAnswers(tx, sess.ID); err != nil {
			return err
		}
		if err := tx.Delete(&sess).Error; err != nil {
			return fmt.Errorf("history: delete session %s: %w", sessionID, err)
		}
		return nil
	})
}

// Citations decodes an archived answer's citation rows.
func Citations(ans models.ArchivedAnswer) []stream.Citation {
	out := make([]stream.Citation, 0, len(ans.Citations))
	for _, rec := range ans.Citations {
		var labels []string
		if rec.Labels != "" {
			_ = json.Unmarshal([]byte(rec.Labels), &labels)
		}
		out = append(out, stream.Citation{
			RefID:     rec.RefID,
			Summary:   rec.Summary,
			StartTime: rec.StartTime,
			EndTime:   rec.EndTime,
			Duration:  rec.Duration,
			Labels:    labels,
		})
	}
	return out
}

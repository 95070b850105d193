// Package models defines the GORM schema for the session archive.
package models

import "time"

// ArchivedSession is a finished question round persisted for later review.
// A session is archived once every answer has settled.
type ArchivedSession struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	SessionID        string `gorm:"size:64;uniqueIndex;not null"`
	TaskID           string `gorm:"size:64;index"`
	Title            string `gorm:"size:128"`
	Question         string `gorm:"type:text"`
	ServerQuestionID string `gorm:"size:64"`
	VotedAnswerID    string `gorm:"size:64"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Answers []ArchivedAnswer `gorm:"foreignKey:SessionRef"`
}

// ArchivedAnswer is one provider's settled answer within an archived session.
type ArchivedAnswer struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SessionRef uint   `gorm:"index;not null"`
	AnswerID   string `gorm:"size:64"`
	ProviderID string `gorm:"size:32;index"`
	Content    string `gorm:"type:text"`
	Err        string `gorm:"type:text"`
	Truncated  bool
	CreatedAt  time.Time

	Citations []ArchivedCitation `gorm:"foreignKey:AnswerRef"`
}

// ArchivedCitation is a source reference attached to an archived answer.
type ArchivedCitation struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AnswerRef uint   `gorm:"index;not null"`
	RefID     string `gorm:"size:64"`
	Summary   string `gorm:"type:text"`
	StartTime string `gorm:"size:32"`
	EndTime   string `gorm:"size:32"`
	Duration  int
	Labels    string `gorm:"type:json"`
}

package models

import "time"

type ChangelogEntry struct {
	ID        string `gorm:"primaryKey"`
	RepoOwner string `gorm:"uniqueIndex:idx_changelog_pr"`
	RepoName  string `gorm:"uniqueIndex:idx_changelog_pr"`
	PRNumber  int    `gorm:"uniqueIndex:idx_changelog_pr"`
	Title     string
	Summary   string
	CreatedBy string
	CreatedAt time.Time
}

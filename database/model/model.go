// Package model holds the gorm models persisted by sheetplot.
package model

import (
	"fmt"
	"time"
)

type User struct {
	Id       int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"size:20;uniqueIndex;not null"`
	Email    string `json:"email" gorm:"size:120;uniqueIndex;not null"`
	Password string `json:"-" gorm:"size:60;not null"`
}

func (u User) String() string {
	return fmt.Sprintf("User(%q, %q)", u.Username, u.Email)
}

// Report records one generated workbook. FilePath is a conventional
// location and is not checked against any filesystem.
type Report struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"size:120;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;<-:create"`
	FilePath  string    `json:"filePath" gorm:"size:200;not null"`
	UserId    *int      `json:"userId" gorm:"index"`
}

type Setting struct {
	Id    int    `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" form:"key" gorm:"uniqueIndex"`
	Value string `json:"value" form:"value"`
}

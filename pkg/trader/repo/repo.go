package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	LifecycleEvent() ILifecycleEvent
}

type Repo struct {
	journalDB *gorm.DB
}

func NewRepo(journalDB *gorm.DB) IRepo {
	return &Repo{
		journalDB: journalDB,
	}
}

func (r *Repo) LifecycleEvent() ILifecycleEvent {
	return NewLifecycleEventSQLRepo(r.journalDB)
}

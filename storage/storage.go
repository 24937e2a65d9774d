// Package storage opens the repositories selected by the database configuration.
package storage

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
	"github.com/trezcool/edusys/storage/database"
	inmemdb "github.com/trezcool/edusys/storage/database/inmem"
	sqlxrepos "github.com/trezcool/edusys/storage/database/sqlx"
)

// MemoryEngine keeps everything in memory; nothing survives a restart.
const MemoryEngine = "memory"

type Repositories struct {
	// DB is nil with the memory engine.
	DB core.DB

	Users         user.Repository
	Courses       course.Repository
	Tasks         task.Repository
	Announcements announcement.Repository

	sqlDB *sqlx.DB
}

// Open creates and migrates the database when needed, then returns its repositories.
func Open(conf *core.Config) (*Repositories, error) {
	if strings.EqualFold(conf.Database.Engine, MemoryEngine) {
		return NewInMemory(inmemdb.NewDB()), nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(conf); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:            db,
		Users:         sqlxrepos.NewUserRepository(db),
		Courses:       sqlxrepos.NewCourseRepository(db),
		Tasks:         sqlxrepos.NewTaskRepository(db),
		Announcements: sqlxrepos.NewAnnouncementRepository(db),
		sqlDB:         db,
	}, nil
}

func NewInMemory(db *inmemdb.DB) *Repositories {
	return &Repositories{
		Users:         inmemdb.NewUserRepository(db),
		Courses:       inmemdb.NewCourseRepository(db),
		Tasks:         inmemdb.NewTaskRepository(db),
		Announcements: inmemdb.NewAnnouncementRepository(db),
	}
}

func (r *Repositories) Close() error {
	if r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.Close()
}

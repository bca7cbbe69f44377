package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	uuid "github.com/satori/go.uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ExperimentRun is one logged run, saved in the database
type ExperimentRun struct {
	ID int64 `gorm:"primary_key"`
	// GORM sets this to the current time
	CreatedAt     time.Time `gorm:"not null"`
	RunID         string    `gorm:"type:varchar(36);not null;uniqueIndex"`
	Experiment    string    `gorm:"type:varchar(255);not null;index"`
	PipelineRunID string    `gorm:"type:varchar(64)"`
	ModelName     string    `gorm:"type:varchar(64);not null"`
	Stage         string    `gorm:"type:varchar(16)"`
	Params        string    `gorm:"type:text"`
	F1            float64
	Precision     float64
	Recall        float64
}

// RegisteredModel is one version of a registered model. Versions start at 1 and
// increase per model name.
type RegisteredModel struct {
	ID        int64     `gorm:"primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	Name      string    `gorm:"type:varchar(64);not null;uniqueIndex:name_version_idx"`
	Version   int       `gorm:"not null;uniqueIndex:name_version_idx"`
	RunID     string    `gorm:"type:varchar(36);not null"`
	Payload   []byte
}

// SQLTracker records runs and registers models in a postgres database.
type SQLTracker struct {
	db *gorm.DB
}

// DB opens the tracking database
func DB(driver, uri string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName:           driver,
		DSN:                  uri,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	d, err := db.DB()
	if err != nil {
		return nil, err
	}
	d.SetConnMaxLifetime(time.Second * 60)
	return db, nil
}

// NewSQLTracker connects to uri and migrates the tracking tables.
func NewSQLTracker(uri string) (*SQLTracker, error) {
	db, err := DB("pgx", uri)
	if err != nil {
		return nil, errors.E(errors.TrackingError, err, "connecting to tracking database")
	}
	t := &SQLTracker{db: db}
	if err := t.Migrate(); err != nil {
		t.Close()
		return nil, errors.E(errors.TrackingError, err, "migrating tracking database")
	}
	return t, nil
}

// Migrate auto-migrates relevant tables in the db.
func (t *SQLTracker) Migrate() error {
	if err := t.db.AutoMigrate(&ExperimentRun{}, &RegisteredModel{}); err != nil {
		return errors.Errorf("error creating tables in DB: %v", err)
	}
	return nil
}

// LogRun implements Tracker. The run and the new model version are written in one transaction.
func (t *SQLTracker) LogRun(ctx context.Context, run Run) (Result, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "generating run id")
	}
	params, err := json.Marshal(stringParams(run))
	if err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "encoding params")
	}

	var payload []byte
	if run.ModelPath != "" {
		if payload, err = fileutil.ReadFile(run.ModelPath); err != nil {
			return Result{}, errors.E(errors.TrackingError, err, "reading model artifact")
		}
	}

	res := Result{RunID: id.String()}
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &ExperimentRun{
			RunID:         res.RunID,
			Experiment:    run.experiment(),
			PipelineRunID: run.PipelineRunID,
			ModelName:     run.ModelName,
			Stage:         run.Stage,
			Params:        string(params),
			F1:            run.Metric.F1,
			Precision:     run.Metric.Precision,
			Recall:        run.Metric.Recall,
		}
		if err := tx.Create(entry).Error; err != nil {
			return errors.Errorf("database error while saving run: %s", err)
		}
		if payload == nil {
			return nil
		}

		var latest int
		row := tx.Model(&RegisteredModel{}).
			Select("coalesce(max(version), 0)").
			Where("name = ?", RegisteredModelName).
			Row()
		if err := row.Scan(&latest); err != nil {
			return errors.Errorf("database error while reading model versions: %s", err)
		}
		version := &RegisteredModel{
			Name:    RegisteredModelName,
			Version: latest + 1,
			RunID:   res.RunID,
			Payload: payload,
		}
		if err := tx.Create(version).Error; err != nil {
			return errors.Errorf("database error while registering model: %s", err)
		}
		res.Registered = true
		res.Version = version.Version
		return nil
	})
	if err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "logging run")
	}
	return res, nil
}

// LatestVersion returns the newest registered version of name.
func (t *SQLTracker) LatestVersion(name string) (*RegisteredModel, error) {
	var m RegisteredModel
	if err := t.db.Where("name = ?", name).Order("version desc").First(&m).Error; err != nil {
		return nil, errors.E(errors.TrackingError, err, "looking up %s", name)
	}
	return &m, nil
}

// Close implements Tracker
func (t *SQLTracker) Close() error {
	d, err := t.db.DB()
	if err != nil {
		return err
	}
	return d.Close()
}

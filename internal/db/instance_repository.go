package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type instanceRepository struct {
	instances collection[models.TrackerInstance]
}

// NewInstanceRepository creates an InstanceRepository over store.
func NewInstanceRepository(store database.Store) InstanceRepository {
	return &instanceRepository{instances: collection[models.TrackerInstance]{store: store, name: instancesCollection}}
}

// Create stores the instance under its account ID, so a second instance for
// the same account fails with ErrAlreadyExists.
func (r *instanceRepository) Create(ctx context.Context, instance *models.TrackerInstance) error {
	if instance.AccountID == "" {
		return errors.New("instance account ID cannot be empty")
	}
	instance.ID = instance.AccountID
	if err := r.instances.create(ctx, instance.ID, instance); err != nil {
		return fmt.Errorf("failed to create instance for account '%s': %w", instance.AccountID, err)
	}
	return nil
}

func (r *instanceRepository) GetByAccountID(ctx context.Context, accountID string) (*models.TrackerInstance, error) {
	instance, err := r.instances.get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance for account '%s': %w", accountID, err)
	}
	return instance, nil
}

func (r *instanceRepository) Update(ctx context.Context, accountID string, mutate func(*models.TrackerInstance) error) (*models.TrackerInstance, error) {
	return r.instances.update(ctx, accountID, func(i *models.TrackerInstance) error {
		if err := mutate(i); err != nil {
			return err
		}
		i.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *instanceRepository) Delete(ctx context.Context, accountID string) error {
	if err := r.instances.delete(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete instance for account '%s': %w", accountID, err)
	}
	return nil
}

type instanceDataRepository struct {
	data collection[models.InstanceData]
}

// NewInstanceDataRepository creates an InstanceDataRepository over store.
func NewInstanceDataRepository(store database.Store) InstanceDataRepository {
	return &instanceDataRepository{data: collection[models.InstanceData]{store: store, name: instanceDataCollection}}
}

func (r *instanceDataRepository) Get(ctx context.Context, accountID string, dataType models.InstanceDataType) (*models.InstanceData, error) {
	id := models.InstanceDataID(accountID, dataType)
	data, err := r.data.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance data '%s': %w", id, err)
	}
	return data, nil
}

func (r *instanceDataRepository) FindOrCreate(ctx context.Context, accountID string, def models.InstanceDocument) (*models.InstanceData, error) {
	existing, err := r.Get(ctx, accountID, def.DataType())
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	data, err := newInstanceData(accountID, def)
	if err != nil {
		return nil, err
	}
	if err := r.data.create(ctx, data.ID, data); err != nil {
		// Lost a race with another first load; the stored document wins.
		if errors.Is(err, database.ErrAlreadyExists) {
			return r.Get(ctx, accountID, def.DataType())
		}
		return nil, fmt.Errorf("failed to create instance data '%s': %w", data.ID, err)
	}
	return data, nil
}

func (r *instanceDataRepository) Upsert(ctx context.Context, accountID string, doc models.InstanceDocument) (*models.InstanceData, error) {
	data, err := newInstanceData(accountID, doc)
	if err != nil {
		return nil, err
	}
	if existing, err := r.Get(ctx, accountID, doc.DataType()); err == nil {
		data.CreatedAt = existing.CreatedAt
	}
	if err := r.data.set(ctx, data.ID, data); err != nil {
		return nil, fmt.Errorf("failed to save instance data '%s': %w", data.ID, err)
	}
	return data, nil
}

func (r *instanceDataRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	for _, t := range []models.InstanceDataType{models.DataGiftGroups, models.DataConfig, models.DataAnalytics} {
		id := models.InstanceDataID(accountID, t)
		if err := r.data.delete(ctx, id); err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to delete instance data '%s': %w", id, err)
		}
	}
	return nil
}

func newInstanceData(accountID string, doc models.InstanceDocument) (*models.InstanceData, error) {
	encoded, err := models.EncodeInstanceDocument(doc)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &models.InstanceData{
		ID:        models.InstanceDataID(accountID, doc.DataType()),
		AccountID: accountID,
		DataType:  doc.DataType(),
		Document:  encoded,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

const appointmentsCollection = "appointments"

// AppointmentRepository implements ports.AppointmentRepository on MongoDB.
type AppointmentRepository struct {
	coll *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) *AppointmentRepository {
	return &AppointmentRepository{coll: db.Collection(appointmentsCollection)}
}

// appointmentDoc augments the domain document with slot_active, the flag the
// partial unique index keys on. Partial filter expressions only allow $eq, so
// "not cancelled" is modelled as slot_active set; cancellation unsets it.
type appointmentDoc struct {
	domain.Appointment `bson:",inline"`
	SlotActive         bool `bson:"slot_active"`
}

// Create inserts a new appointment. A duplicate key on the partial unique
// index (provider_id, slot_bucket) means another booking won the slot.
func (r *AppointmentRepository) Create(ctx context.Context, a *domain.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, appointmentDoc{Appointment: *a, SlotActive: true}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Appointment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &a, nil
}

// CountInWindow counts the provider's non-cancelled appointments whose start
// time falls inside [from, to], excluding excludeID when given.
func (r *AppointmentRepository) CountInWindow(ctx context.Context, providerID string, from, to time.Time, excludeID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id": providerID,
		"status":      bson.M{"$ne": string(domain.StatusCancelled)},
		"start_time":  bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count appointments in window: %w", err)
	}
	return n, nil
}

// UpdateStatus atomically sets the status, stores the cancel reason when
// present, and appends the history entry.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status domain.AppointmentStatus, reason string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"status": string(status), "updated_at": at}
	entry := bson.M{"status": string(status), "timestamp": at}
	if reason != "" {
		entry["reason"] = reason
	}

	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": entry},
	}
	if status == domain.StatusCancelled {
		set["cancel_reason"] = reason
		// free the slot for rebooking: drop the row out of the partial index
		update["$unset"] = bson.M{"slot_active": ""}
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}

// UpdateSchedule moves the appointment to a new start time. The slot bucket
// is recomputed so the unique index keeps guarding the new window.
func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, id string, start time.Time, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"start_time":  start.UTC(),
		"slot_bucket": domain.SlotBucket(start),
		"updated_at":  at,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSlotUnavailable
		}
		return fmt.Errorf("update appointment schedule: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}

// FindOverdue returns SCHEDULED/CONFIRMED appointments that started before
// the given instant, oldest first.
func (r *AppointmentRepository) FindOverdue(ctx context.Context, before time.Time, limit int64) ([]*domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"status": bson.M{"$in": bson.A{
			string(domain.StatusScheduled),
			string(domain.StatusConfirmed),
		}},
		"start_time": bson.M{"$lt": before.UTC()},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find overdue appointments: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Appointment
	for cur.Next(ctx) {
		var a domain.Appointment
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("decode appointment: %w", err)
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}

// List returns a page of appointments matching filter and the total count.
func (r *AppointmentRepository) List(ctx context.Context, filter ports.ListAppointmentsFilter) ([]*domain.Appointment, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.ProviderID != "" {
		query["provider_id"] = filter.ProviderID
	}
	if filter.SubjectID != "" {
		query["subject_id"] = filter.SubjectID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	timeRange := bson.M{}
	if !filter.DateFrom.IsZero() {
		timeRange["$gte"] = filter.DateFrom.UTC()
	}
	if !filter.DateTo.IsZero() {
		timeRange["$lte"] = filter.DateTo.UTC()
	}
	if len(timeRange) > 0 {
		query["start_time"] = timeRange
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetSkip(int64(filter.Page-1) * int64(filter.Limit)).
		SetLimit(int64(filter.Limit))

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Appointment
	for cur.Next(ctx) {
		var a domain.Appointment
		if err := cur.Decode(&a); err != nil {
			return nil, 0, fmt.Errorf("decode appointment: %w", err)
		}
		out = append(out, &a)
	}
	return out, total, cur.Err()
}

// EnsureIndexes creates the agenda indexes. The partial unique index on
// (provider_id, slot_bucket) excludes cancelled rows and is what makes the
// no-double-booking invariant hold under concurrent inserts; the pre-check in
// the service layer only provides a friendlier rejection.
func (r *AppointmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "slot_bucket", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"slot_active": bson.M{"$eq": true},
				}),
		},
		{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_time", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

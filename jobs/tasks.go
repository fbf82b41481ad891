package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockSnapshot captures point-in-time copies of all stock levels.
	TaskStockSnapshot = "stock:snapshot"
)

// StockSnapshotPayload carries scheduling metadata for a snapshot run. A zero
// WarehouseID snapshots every warehouse.
type StockSnapshotPayload struct {
	WarehouseID  int64     `json:"warehouse_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockSnapshotTask constructs an Asynq task for a snapshot run.
func NewStockSnapshotTask(payload StockSnapshotPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockSnapshot, body, asynq.Queue(QueueDefault)), nil
}

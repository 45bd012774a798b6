package domain

import "time"

// Workflow step status values.
const (
	StepCompleted  = "completed"
	StepFailed     = "failed"
	StepSkipped    = "skipped"
	StepDispatched = "dispatched"
)

// Workflow step names in execution order.
const (
	StepCreateOrder     = "create_order"
	StepRecordCoupon    = "record_coupon"
	StepReduceInventory = "reduce_inventory"
	StepProvisionKits   = "provision_kits"
	StepClearCart       = "clear_cart"
	StepPublishEvent    = "publish_event"
	StepNotify          = "dispatch_notifications"
)

// WorkflowStep records the outcome of one step of an order run.
type WorkflowStep struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// PlaceOrderResult is what a successful run hands back to the transport.
type PlaceOrderResult struct {
	Order    *Order           `json:"order"`
	KitCodes []string         `json:"kit_codes,omitempty"`
	Cart     *CartClearResult `json:"cart,omitempty"`
	Steps    []WorkflowStep   `json:"-"`
	Replayed bool             `json:"-"`
}

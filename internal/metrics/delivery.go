package metrics

import (
	"math"
	"time"
)

// DeliveryBucket classifies delivery speed.
type DeliveryBucket string

const (
	BucketFast     DeliveryBucket = "fast"
	BucketStandard DeliveryBucket = "standard"
	BucketSlow     DeliveryBucket = "slow"
)

// DeliveryBuckets lists every bucket in reporting order.
var DeliveryBuckets = []DeliveryBucket{BucketFast, BucketStandard, BucketSlow}

// DeliverySpeedDays returns whole days from purchase to delivery, floored. Deliveries recorded
// before the purchase give negative values.
func DeliverySpeedDays(purchasedAt, deliveredAt time.Time) int {
	return int(math.Floor(deliveredAt.Sub(purchasedAt).Hours() / 24))
}

// BucketFor maps a delivery speed to its bucket. Negative speeds count as fast.
func BucketFor(days int) DeliveryBucket {
	switch {
	case days <= 3:
		return BucketFast
	case days <= 7:
		return BucketStandard
	default:
		return BucketSlow
	}
}

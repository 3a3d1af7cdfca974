// Package domain holds the campaign, audience and execution-log types shared
// by the segmentation, delivery, scheduling and storage layers.
//
// Nothing here imports another internal package or talks to a database. JSON
// tags describe the API and JSONB shapes; the only behaviour is pure
// derivation such as DeriveStatus.
package domain

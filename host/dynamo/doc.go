// Package dynamo keeps segkit buffers in a DynamoDB table.
//
// Each buffer is one item: the base58 key as partition key, the bytes and a
// version number. Every write is conditional on the version the host last
// saw, so a second writer loses with host.ErrConflict instead of silently
// overwriting. DynamoDB items are limited to 400 KB; larger buffers are
// denied with host.ErrGrowthDenied.
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name segkit-buffers \
//	  --attribute-definitions AttributeName=pk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

// Package mongo connects to MongoDB with retries and exposes a readiness probe.
//
//	client, db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Disconnect(context.Background())
package mongo

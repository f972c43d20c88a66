// Package queue distributes grading work over Redis.
//
// A submitter pushes one WorkItem per dataset example onto the queue of its
// kind; workers pop items, grade them and publish a Result on the job's
// pub/sub channel, where the submitter collects them.
//
// # Redis Key Schema
//
//   - itinerary:<kind>:queue - List of work items (LPUSH/BRPOP)
//   - itinerary:<kind>:workers - Integer counter of active workers
//   - itinerary:worker:<id>:health - String with 30s TTL for heartbeat
//   - results:<jobID> - Pub/Sub channel for job results
//
// # Usage
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	results, err := queue.Submit(ctx, client, queue.KindMeeting, entries)
//
// On the worker side:
//
//	item, err := client.Pop(ctx, queue.QueueName(queue.KindMeeting))
//	if err != nil || item == nil {
//		continue
//	}
//	// grade item.Example, then
//	err = client.Publish(ctx, queue.ResultChannel(item.JobID), result)
package queue

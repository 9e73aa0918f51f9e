// Package progress carries terminal task events from download workers to a
// single consumer.
//
// Workers call Channel.Publish; the consumer polls Channel.DrainAvailable on
// its own cadence and folds the result into a Tracker. The channel has its
// own lock so a slow consumer never stalls a worker.
//
// # Usage
//
//	ch := progress.NewChannel()
//	// workers: ch.Publish(progress.CompletedEvent(url, serial, name, size))
//
//	reporter := progress.NewReporter(progress.Options{
//	    Total:  len(tasks),
//	    Output: os.Stderr,
//	})
//	err := reporter.Run(ctx, ch)
//
// # Output Format
//
//	[photofetch] Fetching 20 images for "cats" into ./cats | Workers: 5
//	[photofetch] Images remaining: 12 | 8 completed | 0 failed | 3.1 MiB
//	[photofetch] Download complete: 20 images (7.9 MiB) in 4.2s
package progress

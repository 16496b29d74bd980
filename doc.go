/*
stagepipe runs multithreaded pipelines made of stages linked by bounded queues.

A stage is a pool of workers sharing an input queue and an output queue. Each worker loops: it gets an item
from the input queue, applies the stage transform and puts the result on the output queue. The next stage reads
this output queue as its own input, and so on up to the terminal queue, drained into a Sink.

For instance, a photo gallery uploader:

- download stage (3 workers): fetches each photo, puts it on the resize queue
- resize stage (4 workers): resizes the photo, puts it on the upload queue
- upload stage (5 workers): uploads the photo, puts the receipt on the terminal queue
- sink: records the receipts

Queues are bounded: a worker putting on a full queue blocks until a downstream worker frees some room. The memory
imprint of a pipeline is thus bounded by the sum of its queue capacities and worker counts, and every stage runs at
the pace of the slowest one.

Shutdown is cooperative. Closing a queue pushes one terminator per consumer, and a worker exits once it reads one.
A Pipeline stops its stages in order: once the input is exhausted it closes queue 0, waits for it to be drained
(every item acknowledged) and for its workers to exit, then does the same for queue 1 which cannot receive anything
anymore, and so on. Terminators sit behind the items already queued, so nothing in flight is ever cancelled.

A failing transform does not stop its worker: the item is acknowledged anyway, the failure is reported in the
Report returned by Pipeline.Run, and the worker goes on with the next item.

Items are forwarded in the order they were retrieved by each worker. With several workers in a stage, nothing
guarantees the output order matches the input order: a single worker stage is required for that.

Pool sizing can be tuned to mitigate between latency and memory imprint. If a transform requires low CPU but waits
a lot (API call), a large stage may be a good idea. If it requires high CPU and has no wait, size the stage to the
cpu count. As for any performance tuning, you should try and tune.
*/

package stagepipe

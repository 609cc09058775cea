package metadata

/** @brief The entry point of a job. Results are pushed on out. */
type JobStart func(in any, out chan any) error

/** @brief Called with the job's result channel once it finished. */
type JobOnComplete func(out chan any)

/**
 * @brief Describes a job to be run by the job system.
 */
type JobTask struct {
	/** @brief Invoked when the job starts. Required. */
	OnStart JobStart
	/** @brief Data passed to the entry point upon execution. */
	InputParams any
	/** @brief Invoked when the entry point returned no error. Optional. */
	OnComplete JobOnComplete
	/** @brief Invoked when the entry point failed. Optional. */
	OnFailure JobOnComplete
	/** @brief Invoked after success or failure. Optional. */
	OnCompletionCallback func()
}

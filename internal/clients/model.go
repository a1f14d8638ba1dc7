package clients

const (
	ORCHESTRATOR_INITIALIZING         = "The watcher orchestrator is initializing all the necessary services"
	ORCHESTRATOR_START                = "Starting watcher orchestrator"
	ORCHESTRATOR_CLOSE                = "Closing watcher orchestrator"
	ORCHESTRATOR_START_PROCESSING     = "Archiving %s events starting from spec version %d"
	ORCHESTRATOR_FINISH_BATCH         = "%d blocks archived up to block %s"
	ORCHESTRATOR_FAILED_TO_ARCHIVE    = "Failed to archive events of block %s"
	ORCHESTRATOR_FAILED_TO_SAVE_STATE = "Failed to save watcher state"
	ORCHESTRATOR_RESUBSCRIBING        = "Events no longer decode with spec version %d, resubscribing"
	ORCHESTRATOR_UPGRADE_WATCH_FAILED = "Runtime upgrade watch stopped"
	ORCHESTRATOR_STREAM_ENDED         = "Node ended the event stream"
)

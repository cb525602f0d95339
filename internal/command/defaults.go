package command

// Device command codes.
const (
	CodePing                = 15
	CodeGetRestartCount     = 20
	CodeSetRestartCount     = 25
	CodeRestart             = 30
	CodeSanityCheck         = 35
	CodeGetNonResponseCount = 40
	CodeGetSamplingTime     = 45
	CodeSetSamplingTime     = 50
	CodePauseSampling       = 55
	CodeResumeSampling      = 60
	CodeGetSamplingState    = 65
	CodeSetNodeThreshold    = 70
)

// DefaultCatalog returns the commands supported by the deployed firmware.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultCommands()...)
	if err != nil {
		panic("command: invalid default catalog: " + err.Error())
	}
	return c
}

func defaultCommands() []Command {
	return []Command{
		{
			ID: 1, Code: CodePing, Name: "ping",
			Description: "Check that a node answers",
			Target:      TargetNode, Response: ResponseAck,
		},
		{
			ID: 2, Code: CodeGetRestartCount, Name: "get_restart_count",
			Description: "Read how many times a node has restarted",
			Target:      TargetNode, Response: ResponseInt,
		},
		{
			ID: 3, Code: CodeSetRestartCount, Name: "set_restart_count",
			Description: "Overwrite a node's restart counter",
			Target:      TargetNode, Response: ResponseAck,
			Parameters: []Parameter{
				{Name: "count", Type: ValueInt, Default: 0, Min: bound(0), Max: bound(65535)},
			},
		},
		{
			ID: 4, Code: CodeRestart, Name: "restart",
			Description: "Restart a node",
			Target:      TargetNode, Response: ResponseAck,
		},
		{
			ID: 5, Code: CodeSanityCheck, Name: "sanity_check",
			Description: "Run the node self test",
			Target:      TargetNode, Response: ResponseAck,
		},
		{
			ID: 6, Code: CodeGetNonResponseCount, Name: "get_non_response_count",
			Description: "Count nodes that stopped answering the coordinator",
			Target:      TargetCoordinator, Response: ResponseInt,
		},
		{
			ID: 7, Code: CodeGetSamplingTime, Name: "get_sampling_time",
			Description: "Read the coordinator sampling period in seconds",
			Target:      TargetCoordinator, Response: ResponseInt,
		},
		{
			ID: 8, Code: CodeSetSamplingTime, Name: "set_sampling_time",
			Description: "Set the coordinator sampling period in seconds",
			Target:      TargetCoordinator, Response: ResponseAck,
			Parameters: []Parameter{
				{Name: "seconds", Type: ValueInt, Default: 60, Min: bound(1), Max: bound(86400)},
			},
		},
		{
			ID: 9, Code: CodePauseSampling, Name: "pause_sampling",
			Description: "Stop periodic sampling",
			Target:      TargetCoordinator, Response: ResponseAck,
		},
		{
			ID: 10, Code: CodeResumeSampling, Name: "resume_sampling",
			Description: "Restart periodic sampling",
			Target:      TargetCoordinator, Response: ResponseAck,
		},
		{
			ID: 11, Code: CodeGetSamplingState, Name: "get_sampling_state",
			Description: "Report whether sampling is running",
			Target:      TargetCoordinator, Response: ResponseBool,
		},
		{
			ID: 12, Code: CodeSetNodeThreshold, Name: "set_node_threshold",
			Description: "Set the alarm threshold of one node channel",
			Target:      TargetNode, Response: ResponseAck,
			Parameters: []Parameter{
				{Name: "channel", Type: ValueInt, Default: 1, Min: bound(1), Max: bound(4)},
				{Name: "threshold", Type: ValueFloat, Default: 0, Min: bound(-1000), Max: bound(1000)},
			},
		},
	}
}

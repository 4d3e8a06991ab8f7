package wire

// Error kinds carried in Error.Kind.
const (
	KindDecode                = "DecodeError"
	KindNotFound              = "NotFound"
	KindExternalSceneReadOnly = "ExternalSceneReadOnly"
	KindChannelLengthMismatch = "ChannelLengthMismatch"
	KindInvalidIndex          = "InvalidIndex"
	KindDuplicateName         = "DuplicateName"
	KindInvalidSceneID        = "InvalidSceneId"
	KindInvalidArgument       = "InvalidArgument"
	KindUnknownMethod         = "UnknownMethod"
	KindInternal              = "Internal"
)

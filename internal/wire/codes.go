package wire

// MessageCode identifies a wire message's meaning. Codes are partitioned by
// sub-protocol (telescope, IF chain, test signal, detector/channelizer,
// component controller) into disjoint numeric bands so a single integer
// unambiguously selects both its table and its name.
type MessageCode uint32

const (
	bandWidth = 1000

	telescopeBand  MessageCode = 1 * bandWidth
	ifChainBand    MessageCode = 2 * bandWidth
	testgenBand    MessageCode = 3 * bandWidth
	detectorBand   MessageCode = 4 * bandWidth
	controllerBand MessageCode = 5 * bandWidth
)

// Telescope messages.
const (
	TscopeAllocate MessageCode = telescopeBand + iota
	TscopeDeallocate
	TscopePoint
	TscopeTune
	TscopeStop
	TscopeStow
	TscopeWrap
	TscopeBeamformerReset
	TscopeBeamformerInit
	TscopeBeamformerAutoAtten
	TscopeBeamformerSetCoords
	TscopeBeamformerAddNull
	TscopeBeamformerClear
	TscopeBeamformerPoint
	TscopeBeamformerCal
	TscopeMonitor
	TscopeZfocus
	TscopeLnaOn
	TscopePamSet
	TscopeRequestPointCheck
	TscopeAntgroupAutoselect
	TscopeStatusMultibeam
	TscopeTrackingOn
	TscopeTrackingOff
	TscopeReady
	TscopeError
)

// IF chain messages.
const (
	IfcAttn MessageCode = ifChainBand + iota
	IfcIfsource
	IfcOff
	IfcStxStart
	IfcStxVariance
	IfcIntrinsics
	IfcStatus
	IfcReady
	IfcError
)

// Test signal generator messages.
const (
	TestgenTuneSiggen MessageCode = testgenBand + iota
	TestgenPulse
	TestgenOn
	TestgenOff
	TestgenQuiet
	TestgenReset
	TestgenIntrinsics
	TestgenStatus
	TestgenReady
	TestgenError
)

// Detector / archiver / channelizer messages.
const (
	DxIntrinsics MessageCode = detectorBand + iota
	DxStatus
	DxStarted
	DxTune
	DxDataCollectionStarted
	DxDataCollectionComplete
	DxSignalDetectionStarted
	DxSignalDetectionComplete
	DxDoneSendingCandidates
	DxActivityUnitComplete
	DxError
)

// Component controller messages, shared across every managed component.
const (
	CtlStart MessageCode = controllerBand + iota
	CtlShutdown
	CtlRestart
)

var telescopeNames = map[MessageCode]string{
	TscopeAllocate:            "allocate",
	TscopeDeallocate:          "deallocate",
	TscopePoint:               "point",
	TscopeTune:                "tune",
	TscopeStop:                "stop",
	TscopeStow:                "stow",
	TscopeWrap:                "wrap",
	TscopeBeamformerReset:     "beamformer-reset",
	TscopeBeamformerInit:      "beamformer-init",
	TscopeBeamformerAutoAtten: "beamformer-autoatten",
	TscopeBeamformerSetCoords: "beamformer-set-coords",
	TscopeBeamformerAddNull:   "beamformer-add-null",
	TscopeBeamformerClear:     "beamformer-clear",
	TscopeBeamformerPoint:     "beamformer-point",
	TscopeBeamformerCal:       "beamformer-cal",
	TscopeMonitor:             "monitor",
	TscopeZfocus:              "zfocus",
	TscopeLnaOn:               "lna-on",
	TscopePamSet:              "pam-set",
	TscopeRequestPointCheck:   "request-point-check",
	TscopeAntgroupAutoselect:  "antgroup-autoselect",
	TscopeStatusMultibeam:     "status-multibeam",
	TscopeTrackingOn:          "tracking-on",
	TscopeTrackingOff:         "tracking-off",
	TscopeReady:               "ready",
	TscopeError:               "error",
}

var ifChainNames = map[MessageCode]string{
	IfcAttn:        "attn",
	IfcIfsource:    "ifsource",
	IfcOff:         "off",
	IfcStxStart:    "stxstart",
	IfcStxVariance: "stxvariance",
	IfcIntrinsics:  "intrinsics",
	IfcStatus:      "status",
	IfcReady:       "ready",
	IfcError:       "error",
}

var testgenNames = map[MessageCode]string{
	TestgenTuneSiggen: "tunesiggen",
	TestgenPulse:      "pulse",
	TestgenOn:         "on",
	TestgenOff:        "off",
	TestgenQuiet:      "quiet",
	TestgenReset:      "reset",
	TestgenIntrinsics: "intrinsics",
	TestgenStatus:     "status",
	TestgenReady:      "ready",
	TestgenError:      "error",
}

var detectorNames = map[MessageCode]string{
	DxIntrinsics:             "intrinsics",
	DxStatus:                 "status",
	DxStarted:                "started",
	DxTune:                   "tune",
	DxDataCollectionStarted:  "dataCollectionStarted",
	DxDataCollectionComplete: "dataCollectionComplete",
	DxSignalDetectionStarted:  "signalDetectionStarted",
	DxSignalDetectionComplete: "signalDetectionComplete",
	DxDoneSendingCandidates:   "doneSendingCandidateResults",
	DxActivityUnitComplete:    "activityUnitComplete",
	DxError:                   "error",
}

var controllerNames = map[MessageCode]string{
	CtlStart:    "start",
	CtlShutdown: "shutdown",
	CtlRestart:  "restart",
}

// String renders a message code as its closed-table name, or "unknown" for
// a code found in no table — callers should treat that as a protocol bug,
// not a legitimate message.
func (c MessageCode) String() string {
	var table map[MessageCode]string
	switch {
	case c >= telescopeBand && c < ifChainBand:
		table = telescopeNames
	case c >= ifChainBand && c < testgenBand:
		table = ifChainNames
	case c >= testgenBand && c < detectorBand:
		table = testgenNames
	case c >= detectorBand && c < controllerBand:
		table = detectorNames
	case c >= controllerBand:
		table = controllerNames
	}
	if table != nil {
		if name, ok := table[c]; ok {
			return name
		}
	}
	return "unknown"
}

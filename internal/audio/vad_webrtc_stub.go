//go:build !libfvad

package audio

import "fmt"

func newWebRTCClassifier(*VADConfig) (Classifier, error) {
	return nil, fmt.Errorf("%w: webrtc requires building with -tags libfvad", ErrEngineUnavailable)
}

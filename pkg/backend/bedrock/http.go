package bedrock

import (
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"

	"github.com/rhuss/palaver/pkg/backend"
)

func awsHTTPClient(cfg backend.Config) *awshttp.BuildableClient {
	return awshttp.NewBuildableClient().WithTimeout(cfg.HTTPTimeout()).WithTransportOptions(func(tr *http.Transport) {
		tr.MaxIdleConnsPerHost = 16
	})
}

package kserve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"model-gateway-service/internal/config"
	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

var inferenceServiceGVR = schema.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

const (
	labelModelID      = "model-gateway/model-id"
	labelDeploymentID = "model-gateway/deployment-id"
	gpuResource       = "nvidia.com/gpu"
)

type provisioner struct {
	client       dynamic.Interface
	namespace    string
	readyTimeout time.Duration
	pollInterval time.Duration
}

// NewProvisioner creates a Provisioner that serves models as KServe
// InferenceServices on a Kubernetes cluster.
func NewProvisioner(cfg *config.KubernetesConfig) (output.Provisioner, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		// Try default kubeconfig location
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	return newProvisioner(client, cfg), nil
}

func newProvisioner(client dynamic.Interface, cfg *config.KubernetesConfig) *provisioner {
	ns := cfg.Namespace
	if ns == "" {
		ns = "model-serving"
	}
	readyTimeout := cfg.ReadyTimeout
	if readyTimeout == 0 {
		readyTimeout = 5 * time.Minute
	}
	poll := cfg.PollInterval
	if poll == 0 {
		poll = 5 * time.Second
	}

	return &provisioner{
		client:       client,
		namespace:    ns,
		readyTimeout: readyTimeout,
		pollInterval: poll,
	}
}

// Provision creates or replaces the model's InferenceService and waits until
// KServe reports it Ready.
func (p *provisioner) Provision(ctx context.Context, req output.ProvisionRequest) (*output.ProvisionResult, error) {
	name := resourceName(req.ModelUniqueName)
	logger := log.WithFields(log.Fields{
		"namespace":        p.namespace,
		"inferenceservice": name,
	})

	if req.CustomScript != nil {
		logger.Warn("custom scripts are not supported by the kserve provisioner, ignoring")
	}

	if err := p.apply(ctx, name, req); err != nil {
		return nil, &output.ProvisionError{
			Kind:    domain.ErrBackendUnavailable,
			Message: err.Error(),
		}
	}

	var st *status
	err := wait.PollUntilContextTimeout(ctx, p.pollInterval, p.readyTimeout, true, func(ctx context.Context) (bool, error) {
		obj, err := p.client.Resource(inferenceServiceGVR).Namespace(p.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return false, err
			}
			logger.WithError(err).Debug("get inferenceservice failed, retrying")
			return false, nil
		}
		st = parseStatus(obj)
		return st.Ready && st.URL != "", nil
	})
	if err != nil {
		msg := fmt.Sprintf("inferenceservice %s/%s not ready: %v", p.namespace, name, err)
		if st != nil && st.Error != "" {
			msg = fmt.Sprintf("inferenceservice %s/%s not ready: %s", p.namespace, name, st.Error)
		}
		return nil, &output.ProvisionError{
			Kind:    domain.ErrBackendUnavailable,
			Message: msg,
		}
	}

	url := strings.TrimRight(st.URL, "/") + "/v1/models/" + name + ":predict"
	logger.WithField("url", url).Info("inferenceservice ready")

	return &output.ProvisionResult{
		URL:     url,
		GPUType: req.GPUType,
	}, nil
}

func (p *provisioner) apply(ctx context.Context, name string, req output.ProvisionRequest) error {
	obj := buildInferenceServiceCR(name, req)
	resource := p.client.Resource(inferenceServiceGVR).Namespace(p.namespace)

	_, err := resource.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("create kserve inferenceservice: %w", err)
	}

	existing, err := resource.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get kserve inferenceservice: %w", err)
	}
	obj.SetResourceVersion(existing.GetResourceVersion())

	if _, err := resource.Update(ctx, obj, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update kserve inferenceservice: %w", err)
	}
	return nil
}

func buildInferenceServiceCR(name string, req output.ProvisionRequest) *unstructured.Unstructured {
	modelID := req.OrgName + "/" + req.ModelName
	if req.OrgName == domain.DefaultOrgName {
		modelID = req.ModelName
	}

	modelSpec := map[string]interface{}{
		"modelFormat": map[string]interface{}{
			"name": "huggingface",
		},
		"args": []interface{}{
			"--model_name=" + name,
			"--model_id=" + modelID,
			"--model_revision=" + req.ModelRevision,
		},
	}

	if req.GPUType != "" && req.GPUType != domain.DefaultGPUType {
		modelSpec["resources"] = map[string]interface{}{
			"limits": map[string]interface{}{
				gpuResource: "1",
			},
		}
	}

	predictor := map[string]interface{}{
		"model": modelSpec,
	}
	if req.GPUType != "" && req.GPUType != domain.DefaultGPUType {
		predictor["nodeSelector"] = map[string]interface{}{
			"nvidia.com/gpu.product": req.GPUType,
		}
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "serving.kserve.io/v1beta1",
			"kind":       "InferenceService",
			"metadata": map[string]interface{}{
				"name": name,
				"labels": map[string]interface{}{
					labelModelID:      req.ModelID.String(),
					labelDeploymentID: req.DeploymentID.String(),
				},
			},
			"spec": map[string]interface{}{
				"predictor": predictor,
			},
		},
	}
}

type status struct {
	URL   string
	Ready bool
	Error string
}

func parseStatus(obj *unstructured.Unstructured) *status {
	st := &status{}

	statusMap, found, _ := unstructured.NestedMap(obj.Object, "status")
	if !found {
		return st
	}

	st.URL, _, _ = unstructured.NestedString(statusMap, "url")

	conditions, found, _ := unstructured.NestedSlice(statusMap, "conditions")
	if !found {
		return st
	}
	for _, cond := range conditions {
		condMap, ok := cond.(map[string]interface{})
		if !ok {
			continue
		}
		condType, _ := condMap["type"].(string)
		condStatus, _ := condMap["status"].(string)

		if condType == "Ready" {
			st.Ready = condStatus == "True"
			if condStatus == "False" {
				if msg, ok := condMap["message"].(string); ok {
					st.Error = msg
				}
			}
			break
		}
	}
	return st
}

// resourceName turns a model name into a DNS-1123 label.
func resourceName(modelName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(modelName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	if len(name) > validation.DNS1123LabelMaxLength {
		name = strings.TrimRight(name[:validation.DNS1123LabelMaxLength], "-")
	}
	if name == "" || len(validation.IsDNS1123Label(name)) > 0 {
		return "model"
	}
	return name
}

// Ensure interface compliance
var _ output.Provisioner = (*provisioner)(nil)

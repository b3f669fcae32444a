// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package factory is the public entry point of the model factory.
//
// Model definitions are registered by name and built from a Config on a
// differentiable CPU backend. The registry ships with twin_cnn_8p1fp1f_sct.
//
// # Basic Usage
//
//	import "github.com/born-ml/factory/factory"
//
//	func main() {
//	    cfg, err := factory.LoadConfig("model.yaml")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    backend := factory.NewBackend()
//	    model, err := factory.Build(cfg.ModelName, cfg, backend, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    images := factory.Randn(factory.Shape{4, 128, 128, 2}, 1, backend)
//	    pred, err := model.Inference(images)
//	    loss, err := model.Loss(pred, targets, nil)
//	    result, err := model.Train(loss, step)
//	}
//
// # Phases
//
// A model built with phase "train" records a gradient tape on the backend and
// applies dropout and batch statistics. SetPhase(PhaseTest) switches to
// evaluation: dropout becomes the identity, batch normalization uses running
// averages and recording stops.
package factory

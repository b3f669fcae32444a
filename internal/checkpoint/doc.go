// Package checkpoint saves and restores model state in the .born format.
//
//	Format Structure:
//	  [0x00: Magic "BORN"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Data Size (uint64 LE)]
//	  [0x20: SHA-256 of the data section]
//	  [0x40: Header: JSON metadata]
//	  [Tensor data: little-endian, 64-byte aligned]
//
// float32 tensors are stored in 4 bytes per element and float16 tensors in
// 2 bytes per element. Tensors are written in name order, so saving the same
// state twice yields the same data section.
//
// Example usage:
//
//	if err := checkpoint.Save("model.born", model.State(), checkpoint.Header{
//	    ModelType:  twincnn.Name,
//	    Checkpoint: &checkpoint.Meta{Step: step, Loss: loss},
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	header, err := checkpoint.Load("model.born", model.State())
package checkpoint

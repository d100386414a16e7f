package trace

import (
	"github.com/colorfulnotion/xlate/log"
	"github.com/colorfulnotion/xlate/plugin"
)

// Subscribe registers a translation-time subscriber that attaches
// exec and memory callbacks to every instruction of every translated
// block, streaming Records to w. disasm renders an instruction at a
// guest address for the exec records; it may be nil.
func Subscribe(reg *plugin.Registry, w *JSONLWriter, disasm func(vaddr uint64) string) {
	reg.RegisterTBTrans(func(ptb *plugin.TB) {
		if err := w.Write(NewBlockRecord(&BlockRecord{
			PC:     ptb.Vaddr,
			ICount: len(ptb.Insns),
		})); err != nil {
			log.Warn(log.PluginMonitoring, "trace block record dropped", "err", err)
		}

		for _, insn := range ptb.Insns {
			insn.ExecCbs = append(insn.ExecCbs, plugin.ExecCallback{
				Fn: func(vaddr uint64, userdata any) {
					rec := &ExecRecord{Vaddr: vaddr}
					if disasm != nil {
						rec.Asm = disasm(vaddr)
					}
					if err := w.Write(NewExecRecord(rec)); err != nil {
						log.Warn(log.PluginMonitoring, "trace exec record dropped", "err", err)
					}
				},
			})
			insn.MemCbs = append(insn.MemCbs, plugin.MemCallback{
				Fn: func(vaddr, addr uint64, size int, isStore bool, userdata any) {
					if err := w.Write(NewMemRecord(&MemRecord{
						Vaddr:   vaddr,
						Addr:    addr,
						Size:    size,
						IsStore: isStore,
					})); err != nil {
						log.Warn(log.PluginMonitoring, "trace mem record dropped", "err", err)
					}
				},
			})
		}
	})
}

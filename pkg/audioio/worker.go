package audioio

import "time"

// PlaySamplesRoutine plays every chunk received on chunks until the channel
// is closed, then stops the session. Each chunk preempts the previous one.
func PlaySamplesRoutine(p *PlaybackSession, chunks <-chan []int16) {
	log := p.log
	log.Info().Msg("PlaySamplesRoutine started")

	i := 0
	for samples := range chunks {
		i++
		startTime := time.Now()
		if !p.Play(samples) {
			log.Warn().Int("num", i).Int("samples", len(samples)).Msg("cannot play chunk, skipping")
			continue
		}
		log.Debug().Int("num", i).Int("samples", len(samples)).Dur("duration", time.Since(startTime)).Msg("chunk queued")
	}

	p.Stop()
	log.Info().Int("chunks", i).Msg("PlaySamplesRoutine finished")
}
